// mksegments writes a synthetic recording tree so the timeline widget
// and the availability API can be exercised without cameras: date
// directories of empty HH-MM-SS.ts stubs with deterministic gaps and
// optional motion sidecars.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

func main() {
	base := flag.String("base", "./recordings", "Storage base path")
	channel := flag.String("channel", "cam1", "Channel name")
	days := flag.Int("days", 3, "Days of history to generate, ending today")
	segment := flag.Int("segment", 1800, "Seconds per segment file")
	gapChance := flag.Float64("gap-chance", 0.15, "Probability a segment is missing")
	motion := flag.Bool("motion", false, "Write .motion sidecars with random scores")
	seed := flag.Int64("seed", 1, "Random seed, for repeatable trees")
	flag.Parse()

	if *segment < 60 {
		log.Fatal("segment must be at least 60 seconds")
	}
	if *days < 1 {
		log.Fatal("days must be at least 1")
	}

	rng := rand.New(rand.NewSource(*seed))
	segDur := time.Duration(*segment) * time.Second
	now := time.Now()
	written, skipped := 0, 0

	for d := *days - 1; d >= 0; d-- {
		day := now.AddDate(0, 0, -d)
		dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
		dir := filepath.Join(*base, *channel, "recordings", dayStart.Format("2006-01-02"))
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create %s: %v", dir, err)
		}

		for t := dayStart; t.Before(dayStart.AddDate(0, 0, 1)); t = t.Add(segDur) {
			// Never write segments from the future.
			if t.Add(segDur).After(now) {
				break
			}
			if rng.Float64() < *gapChance {
				skipped++
				continue
			}

			name := t.Format("15-04-05")
			if err := os.WriteFile(filepath.Join(dir, name+".ts"), nil, 0644); err != nil {
				log.Fatalf("Failed to write segment: %v", err)
			}
			if *motion {
				score := rng.Float64()
				x := rng.Intn(1600)
				y := rng.Intn(900)
				line := fmt.Sprintf("%.2f %d %d %d %d\n", score, x, y, x+rng.Intn(320)+1, y+rng.Intn(180)+1)
				if err := os.WriteFile(filepath.Join(dir, name+".motion"), []byte(line), 0644); err != nil {
					log.Fatalf("Failed to write sidecar: %v", err)
				}
			}
			written++
		}
	}

	fmt.Printf("Wrote %d segments (%d gaps) under %s\n", written, skipped,
		filepath.Join(*base, *channel, "recordings"))
}
