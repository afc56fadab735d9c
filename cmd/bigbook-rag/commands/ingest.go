package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// IngestRunAction ingests every document listed in the sources manifest.
func IngestRunAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	manifestPath := cmd.String("manifest")
	if manifestPath == "" {
		manifestPath = appCtx.Config.Ingest.ManifestPath
	}

	result, err := appCtx.IngestService().Run(ctx, manifestPath)
	if err != nil {
		return err
	}

	appCtx.Logger.Info("ingestion finished",
		"ingested", result.DocumentsIngested,
		"skipped", result.DocumentsSkipped,
		"chunks", result.ChunksInserted,
	)
	fmt.Printf("ingested %d documents (%d chunks), skipped %d\n",
		result.DocumentsIngested, result.ChunksInserted, result.DocumentsSkipped)

	return nil
}

// IngestResetAction wipes the vector store and the ingestion registry.
func IngestResetAction(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return fmt.Errorf("reset deletes every ingested chunk; re-run with --yes to confirm")
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.IngestService().Reset(ctx); err != nil {
		return err
	}

	appCtx.Logger.Info("store and registry reset")
	fmt.Println("store and registry reset")
	return nil
}
