// headsim flies synthetic heads around a server. Useful for soak-testing
// broadcast fan-out without real VR hardware: each simulated client moves
// on a circle while slowly turning its head.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/skyezerfox/headsync/client"
	"github.com/skyezerfox/headsync/models"
	"github.com/skyezerfox/headsync/utils"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	addr := flag.String("addr", "127.0.0.1:5031", "server address")
	clients := flag.Int("clients", 1, "number of simulated clients")
	hz := flag.Int("hz", 30, "pose update rate per client")
	radius := flag.Float64("radius", 3, "flight circle radius")
	flag.Parse()

	for i := 0; i < *clients; i++ {
		name := fmt.Sprintf("sim-%s", utils.RandString(5))
		s, err := client.Dial(client.Options{Addr: *addr, Name: name, SendHz: *hz})
		if err != nil {
			log.Fatal().Err(err).Str("addr", *addr).Msg("Failed to join server")
		}
		go fly(s, i, *clients, *radius, *hz)
	}
	log.Info().Int("clients", *clients).Str("addr", *addr).Msg("Simulation running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down...")
}

// fly moves one head around a circle, phase-shifted so clients spread out
// evenly, and reports what it sees every couple of seconds.
func fly(s *client.Session, index, total int, radius float64, hz int) {
	defer s.Close()

	phase := 2 * math.Pi * float64(index) / float64(total)
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()
	report := time.NewTicker(2 * time.Second)
	defer report.Stop()

	start := time.Now()
	for {
		select {
		case <-ticker.C:
			angle := phase + time.Since(start).Seconds()/3
			s.SetPose(models.Pose{
				Position: [3]float32{
					float32(radius * math.Cos(angle)),
					1.7, // eye height
					float32(radius * math.Sin(angle)),
				},
				// Yaw so the head faces along its direction of travel.
				Orientation: [4]float32{
					0,
					float32(math.Sin(angle / 2)),
					0,
					float32(math.Cos(angle / 2)),
				},
			})
		case <-report.C:
			log.Info().
				Str("id", s.ID().String()).
				Int("remotes", len(s.Remotes())).
				Msg("Simulated client alive")
		case <-s.Done():
			if err := s.Err(); err != nil {
				log.Warn().Err(err).Str("id", s.ID().String()).Msg("Simulated client lost its session")
			}
			return
		}
	}
}
