package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/vidx/internal/cache"
	"github.com/desertthunder/vidx/internal/shared"
)

var namespaces = []cache.Namespace{cache.Videos, cache.Playlists, cache.History, cache.Categories, cache.Users}

func parseNamespace(s string) (cache.Namespace, error) {
	for _, ns := range namespaces {
		if strings.EqualFold(s, string(ns)) {
			return ns, nil
		}
	}
	return "", fmt.Errorf("%w: unknown cache namespace %q", shared.ErrInvalidArgument, s)
}

// CacheClear drops cached responses, either every namespace or the ones named with --namespace.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	names := cmd.StringSlice("namespace")
	var selected []cache.Namespace
	for _, n := range names {
		ns, err := parseNamespace(n)
		if err != nil {
			return err
		}
		selected = append(selected, ns)
	}

	c, err := r.container(ctx)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		if err := c.Cache.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		return r.writePlain("✓ Cache cleared\n")
	}
	for _, ns := range selected {
		if err := c.Cache.InvalidateNamespace(ctx, ns); err != nil {
			return fmt.Errorf("failed to clear %s: %w", ns, err)
		}
		r.logger.Debug("cleared namespace", "namespace", ns)
	}
	return r.writePlain("✓ Cleared %s\n", strings.Join(names, ", "))
}
