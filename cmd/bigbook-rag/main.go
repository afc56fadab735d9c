package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/stepstudy/bigbook-rag/cmd/bigbook-rag/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envFlag := func() *cli.StringFlag {
		return &cli.StringFlag{
			Name:  "env",
			Usage: "path to the .env file",
			Value: ".env",
		}
	}

	app := &cli.Command{
		Name:  "bigbook-rag",
		Usage: "question answering over the Big Book and the 12&12, grounded in cited excerpts",
		Commands: []*cli.Command{
			{
				Name:      "ask",
				Usage:     "ask a question against the ingested corpus",
				ArgsUsage: "<question>",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:  "session",
						Usage: "session id for conversation history",
					},
					&cli.StringFlag{
						Name:  "work",
						Usage: "restrict retrieval to one work (e.g. bigbook, twelve_and_twelve)",
					},
					&cli.StringSliceFlag{
						Name:  "edition",
						Usage: "restrict retrieval to specific editions",
					},
					&cli.IntFlag{
						Name:  "blocks",
						Usage: "maximum grounding blocks",
					},
					&cli.BoolFlag{
						Name:  "show-sources",
						Usage: "print citation details after the answer",
					},
				},
				Action: commands.AskAction,
			},
			{
				Name:  "ingest",
				Usage: "corpus ingestion commands",
				Commands: []*cli.Command{
					{
						Name:  "run",
						Usage: "ingest the documents listed in the sources manifest",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:  "manifest",
								Usage: "path to the sources manifest (overrides SOURCES_MANIFEST)",
							},
						},
						Action: commands.IngestRunAction,
					},
					{
						Name:  "reset",
						Usage: "wipe the vector store and the ingestion registry",
						Flags: []cli.Flag{
							envFlag(),
							&cli.BoolFlag{
								Name:  "yes",
								Usage: "confirm the wipe",
							},
						},
						Action: commands.IngestResetAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
