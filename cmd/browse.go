package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/renderkit/internal/catalog"
	"github.com/desertthunder/renderkit/internal/formatter"
	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/shared"
	"github.com/urfave/cli/v3"
)

// maxContinuations bounds `search --more` against sources that never report a total.
const maxContinuations = 100

// pageRange reads --start and --end. A negative end means one page from start.
func (r *Runner) pageRange(cmd *cli.Command) (models.Range, error) {
	start, end := cmd.Int("start"), cmd.Int("end")
	if start < 0 {
		return models.Range{}, fmt.Errorf("%w: --start must not be negative", shared.ErrInvalidFlag)
	}
	if end < 0 {
		end = start + r.pageSize() - 1
	}
	if end < start {
		return models.Range{}, fmt.Errorf("%w: --end %d is before --start %d", shared.ErrInvalidFlag, end, start)
	}
	return models.NewRange(start, end), nil
}

func (r *Runner) pageSize() int {
	if r.config.Client.PageSize > 0 {
		return r.config.Client.PageSize
	}
	return 50
}

// Browse lists one page of a node, the root when no node is given.
func (r *Runner) Browse(ctx context.Context, cmd *cli.Command) error {
	f, err := r.format(cmd)
	if err != nil {
		return err
	}
	rng, err := r.pageRange(cmd)
	if err != nil {
		return err
	}

	s, err := r.open(ctx, nil)
	if err != nil {
		return err
	}
	c, err := s.Container(ctx, cmd.StringArg("node"))
	if err != nil {
		return err
	}

	if cmd.Bool("info") {
		return formatter.WriteNode(r.output, c.Node(), f)
	}

	r.logger.Debug("browsing", "node", c.Node().ID, "range", rng)
	page, err := c.GetItems(ctx, rng)
	if err != nil {
		return err
	}
	return formatter.WritePage(r.output, page, rng.Lower, f)
}

// Search runs a first search for the requested range. With --more it then follows with
// continuation searches, one page at a time, until the results are exhausted.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	keyword := cmd.StringArg("keyword")
	if keyword == "" {
		return fmt.Errorf("%w: keyword is required", shared.ErrMissingArgument)
	}
	f, err := r.format(cmd)
	if err != nil {
		return err
	}
	rng, err := r.pageRange(cmd)
	if err != nil {
		return err
	}

	s, err := r.open(ctx, nil)
	if err != nil {
		return err
	}
	c, err := s.Container(ctx, cmd.String("node"))
	if err != nil {
		return err
	}
	criterion, err := searchCriterion(c, cmd.String("criterion"))
	if err != nil {
		return err
	}

	r.logger.Debug("searching", "node", c.Node().ID, "keyword", keyword, "criterion", criterion.Key())
	page, err := c.Search(ctx, keyword, criterion, rng, true)
	if err != nil {
		return err
	}
	if err := formatter.WritePage(r.output, page, rng.Lower, f); err != nil {
		return err
	}
	if !cmd.Bool("more") {
		return nil
	}

	size := rng.Len()
	for i := 0; i < maxContinuations && len(page.Items) == size; i++ {
		next := models.NewRange(rng.Upper+1, rng.Upper+size)
		if page.Total != nil && next.Lower >= *page.Total {
			break
		}
		rng = next
		if page, err = c.Search(ctx, keyword, criterion, rng, false); err != nil {
			return err
		}
		if err := formatter.WritePage(r.output, page, rng.Lower, f); err != nil {
			return err
		}
	}
	return nil
}

// searchCriterion picks the criterion named key, or the node's first criterion when key is empty.
func searchCriterion(c *catalog.Container, key string) (models.SearchCriterion, error) {
	node := c.Node()
	if !node.Searchable() {
		return models.SearchCriterion{}, fmt.Errorf("%w: node %s is not searchable", shared.ErrInvalidArgument, node.ID)
	}
	if key == "" {
		return node.SearchCriteria[0], nil
	}
	if criterion, ok := node.Criterion(key); ok {
		return criterion, nil
	}
	return models.SearchCriterion{}, fmt.Errorf("%w: node %s has no criterion %q", shared.ErrInvalidFlag, node.ID, key)
}
