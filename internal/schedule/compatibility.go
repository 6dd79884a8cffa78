// Package schedule computes compatibility between a beneficiary's weekly
// availability and a slot's weekly schedule.
package schedule

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sibec-dev/becas-api/internal/models"
)

// Result is the outcome of scoring a slot schedule against an availability.
type Result struct {
	Percentage       float64 `json:"percentage"`
	CompatibleBlocks int     `json:"compatible_blocks"`
}

// Score returns the fraction of slot blocks fully contained in the
// availability, as a percentage rounded to one decimal. A slot block counts
// only when an availability block on the same day contains its whole
// [start, end) interval; partial overlap earns no credit. A slot with no
// blocks scores 100 with zero compatible blocks (vacuous match).
func Score(availability []models.TimeBlock, slotBlocks []models.TimeBlock) (Result, error) {
	if len(slotBlocks) == 0 {
		return Result{Percentage: 100.0}, nil
	}

	byDay := make(map[models.Weekday][]interval, len(availability))
	for _, b := range availability {
		iv, err := parseBlock(b)
		if err != nil {
			return Result{}, fmt.Errorf("availability block: %w", err)
		}
		byDay[b.Day] = append(byDay[b.Day], iv)
	}

	compatible := 0
	for _, b := range slotBlocks {
		iv, err := parseBlock(b)
		if err != nil {
			return Result{}, fmt.Errorf("slot block: %w", err)
		}
		for _, avail := range byDay[b.Day] {
			if avail.start <= iv.start && iv.end <= avail.end {
				compatible++
				break
			}
		}
	}

	pct := float64(compatible) / float64(len(slotBlocks)) * 100
	return Result{
		Percentage:       math.Round(pct*10) / 10,
		CompatibleBlocks: compatible,
	}, nil
}

// ValidateBlocks checks that every block names a valid weekday and a
// well-formed, non-empty time interval.
func ValidateBlocks(blocks []models.TimeBlock) error {
	for _, b := range blocks {
		if !models.ValidWeekday(b.Day) {
			return fmt.Errorf("invalid weekday %q", b.Day)
		}
		if _, err := parseBlock(b); err != nil {
			return err
		}
	}
	return nil
}

type interval struct {
	start int
	end   int
}

func parseBlock(b models.TimeBlock) (interval, error) {
	start, err := parseClock(b.StartTime)
	if err != nil {
		return interval{}, err
	}
	end, err := parseClock(b.EndTime)
	if err != nil {
		return interval{}, err
	}
	if end <= start {
		return interval{}, fmt.Errorf("block %s %s-%s: end not after start", b.Day, b.StartTime, b.EndTime)
	}
	return interval{start: start, end: end}, nil
}

// parseClock converts an "HH:MM" string to minutes since midnight.
func parseClock(raw string) (int, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return hour*60 + minute, nil
}
