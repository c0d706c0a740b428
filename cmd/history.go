package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/desertthunder/crossfade/internal/formatter"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
	"github.com/urfave/cli/v3"
)

type historyEntry struct {
	ID        string  `json:"id"`
	Sequence  int     `json:"sequence"`
	Direction string  `json:"direction"`
	Playlist  string  `json:"playlist"`
	Target    string  `json:"target_playlist_id,omitempty"`
	Status    string  `json:"status"`
	Total     int     `json:"total"`
	Matched   int     `json:"matched"`
	MatchRate float64 `json:"match_rate"`
	Error     string  `json:"error,omitempty"`
	CreatedAt string  `json:"created_at"`
}

func newHistoryEntry(c *models.Conversion) historyEntry {
	name := c.SourcePlaylistName()
	if name == "" {
		name = c.SourcePlaylistID()
	}
	return historyEntry{
		ID:        c.ID(),
		Sequence:  c.Sequence(),
		Direction: c.Direction(),
		Playlist:  name,
		Target:    c.TargetPlaylistID(),
		Status:    c.Status(),
		Total:     c.TracksTotal(),
		Matched:   c.TracksMatched(),
		MatchRate: c.MatchRate(),
		Error:     c.ErrorMessage(),
		CreatedAt: c.CreatedAt().Format("2006-01-02 15:04"),
	}
}

// HistoryList prints recorded conversions, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	repo, closeDB, err := r.openHistory()
	if err != nil {
		return err
	}
	defer closeDB()

	conversions, err := repo.List(map[string]any{
		"status": cmd.String("status"),
		"limit":  cmd.Int("limit"),
	})
	if err != nil {
		return err
	}

	entries := make([]historyEntry, 0, len(conversions))
	for _, c := range conversions {
		entries = append(entries, newHistoryEntry(c))
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, true)
	}

	if len(entries) == 0 {
		return r.writePlain("No conversions recorded\n")
	}

	r.writePlainHeader(fmt.Sprintf("Conversions (%d)", len(entries)))
	for _, e := range entries {
		r.writePlain("#%-4d %-10s %-20s %3d/%-3d (%5.1f%%)  %s  %s\n",
			e.Sequence, e.Status, e.Direction, e.Matched, e.Total, e.MatchRate, e.CreatedAt, e.Playlist)
	}
	return nil
}

// HistoryShow prints the per-track report of one conversion, looked up by sequence number or ID.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	arg := cmd.StringArg("conversion")
	if arg == "" {
		return fmt.Errorf("%w: conversion sequence number or ID", shared.ErrMissingArgument)
	}

	repo, closeDB, err := r.openHistory()
	if err != nil {
		return err
	}
	defer closeDB()

	var conv *models.Conversion
	if seq, convErr := strconv.Atoi(arg); convErr == nil {
		conv, err = repo.GetBySequence(seq)
	} else {
		conv, err = repo.Get(arg)
	}
	if err != nil {
		return err
	}

	matches, err := repo.Matches(conv.ID())
	if err != nil {
		return err
	}

	report := &formatter.Report{Conversion: conv, Matches: matches}
	if path := cmd.String("report"); path != "" {
		written, err := formatter.WriteReport(report, path)
		if err != nil {
			return err
		}
		r.logger.Info("report written", "path", written)
	}

	r.writePlainHeader(fmt.Sprintf("Conversion #%d", conv.Sequence()))
	if _, err := r.output.Write(formatter.ReportToText(report)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if msg := conv.ErrorMessage(); msg != "" {
		return r.writePlainln("Error: %s", msg)
	}
	return nil
}
