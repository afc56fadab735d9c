package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/stepstudy/bigbook-rag/internal/core/answer"
	"github.com/stepstudy/bigbook-rag/internal/core/retrieval"
)

// AskAction answers one question against the ingested corpus.
func AskAction(ctx context.Context, cmd *cli.Command) error {
	question := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("usage: ask <question>")
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	filter := retrieval.Filter{}.
		Eq("work", cmd.String("work")).
		In("edition", cmd.StringSlice("edition")...)

	result, err := appCtx.AnswerService().Answer(ctx, answer.AnswerParams{
		Question:  question,
		SessionID: cmd.String("session"),
		Filter:    filter,
		MaxBlocks: int(cmd.Int("blocks")),
	})
	if err != nil {
		return err
	}

	fmt.Println(result.Text)

	if cmd.Bool("show-sources") {
		fmt.Println()
		for _, c := range result.CitationsUsed {
			fmt.Printf("%s  score=%.4f  doc=%s\n", c.Cite, c.Score, c.DocID)
		}
	}

	return nil
}
