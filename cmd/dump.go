package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/desertthunder/renderkit/internal/repositories"
	"github.com/desertthunder/renderkit/internal/shared"
	"github.com/desertthunder/renderkit/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Dump refreshes every renderer and queue and prints the snapshot. With --save it is also stored
// in the library database, keeping only the newest --keep snapshots when set.
func (r *Runner) Dump(ctx context.Context, cmd *cli.Command) error {
	var (
		repo  *repositories.SnapshotRepository
		store tasks.SnapshotStore
	)
	if cmd.Bool("save") {
		db, err := r.database()
		if err != nil {
			return err
		}
		repo = repositories.NewSnapshotRepository(db)
		store = repo
	}

	s, err := r.open(ctx, store)
	if err != nil {
		return err
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	output := cmd.String("output")
	if output != "" {
		go r.printProgress(progressCh, done)
	} else {
		go func() {
			defer close(done)
			for update := range progressCh {
				r.logger.Debug(update.Message, "phase", update.Phase)
			}
		}()
	}

	result, err := s.Engine().Dump(ctx, progressCh)
	close(progressCh)
	<-done
	if err != nil {
		return err
	}

	if result.Failures > 0 {
		r.logger.Warn("some renderers could not be refreshed", "failures", result.Failures)
	}

	if output == "" {
		if _, err := r.output.Write(append(result.Body, '\n')); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	} else {
		if err := os.WriteFile(output, result.Body, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", output, err)
		}
		r.writePlain("\n✓ Dump saved to %s\n", output)
	}

	if result.SnapshotID != "" {
		r.logger.Info("snapshot stored", "id", result.SnapshotID)
		if output != "" {
			r.writePlain("✓ Snapshot stored: %s\n", result.SnapshotID)
		}
		if keep := cmd.Int("keep"); keep > 0 {
			pruned, err := repo.Prune(keep)
			if err != nil {
				return err
			}
			r.logger.Debug("pruned snapshots", "removed", pruned, "kept", keep)
		}
	}
	return nil
}

// DumpList prints the stored snapshots, newest first.
func (r *Runner) DumpList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}
	records, err := repositories.NewSnapshotRepository(db).List(cmd.Int("limit"))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return r.writePlain("No snapshots stored. Run 'renderkit dump --save' first.\n")
	}

	for _, rec := range records {
		r.writePlain("%-36s  #%-4s %d renderers  %s\n",
			rec.ID, strconv.Itoa(rec.Sequence), rec.RendererCount, rec.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// DumpShow prints a stored snapshot body.
func (r *Runner) DumpShow(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}
	repo := repositories.NewSnapshotRepository(db)

	var rec *repositories.SnapshotRecord
	if id := cmd.StringArg("id"); id != "" {
		rec, err = repo.Get(id)
	} else {
		rec, err = repo.Latest()
	}
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	if _, err := r.output.Write(append(rec.Body, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
