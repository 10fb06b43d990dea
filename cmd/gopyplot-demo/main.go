// Command gopyplot-demo publishes an animated sine sweep and a surface
// matrix to a renderer over NATS.
//
// Usage:
//
//	gopyplot-demo [-config path] [-frames n] [-v]
//
// Without a config file it embeds a broker on the default port
// (nats://127.0.0.1:5555) and expects a renderer to be started separately,
// subscribed to the default subject. The script fragments assume the
// renderer exposes the received arrays by name alongside numpy (np) and
// matplotlib.pyplot (plt).
package main

import (
	"context"
	"flag"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"

	"github.com/muralivnv/gopyplot"
	"github.com/muralivnv/gopyplot/buffers"
	"github.com/muralivnv/gopyplot/config"
	"github.com/muralivnv/gopyplot/session"
)

func main() {
	configPath := flag.String("config", "", "TOML config file; defaults apply when empty")
	frames := flag.Int("frames", 60, "sine animation frames to publish")
	verbose := flag.Bool("v", false, "log session debug lines")
	flag.Parse()

	output := zerolog.ConsoleWriter{
		Out:        colorable.NewColorableStdout(),
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).With().Timestamp().Str("app", "gopyplot-demo").Logger()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("load config")
		}
	}

	// Trap Ctrl+C for clean shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var opts []gopyplot.Option
	if *verbose {
		opts = append(opts, gopyplot.WithLogger(&logger))
	}
	plt, err := gopyplot.New(cfg, opts...)
	if err != nil {
		logger.Fatal().Err(err).Msg("start plotter")
	}
	defer plt.Close()

	logger.Info().
		Str("url", plt.ServerURL()).
		Str("session", plt.ID().String()).
		Msg("publishing")

	if err := run(ctx, plt, *frames, logger); err != nil {
		logger.Error().Err(err).Msg("demo failed")
		return
	}
	logger.Info().Msg("done")
}

// run publishes one batch per animation frame, then a single surface
// batch. Each batch carries its own script fragment; the renderer executes
// it against the arrays received in that batch.
func run(ctx context.Context, plt *gopyplot.Plotter, frames int, logger zerolog.Logger) error {
	const n = 256
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = float64(i) / float64(n) * 4 * math.Pi
	}

	for frame := 0; frame < frames; frame++ {
		select {
		case <-ctx.Done():
			logger.Info().Int("frame", frame).Msg("interrupted")
			return nil
		default:
		}

		phase := float64(frame) * 0.1
		for i := range x {
			y[i] = math.Sin(x[i] + phase)
		}

		_ = plt.PushRaw(`
			plt.clf()
			plt.plot(x, y, 'b-')
			plt.ylim(-1.2, 1.2)
			plt.grid(True)
			plt.pause(0.01)
		`)
		if err := plt.SendBuffers(
			session.Named("x", buffers.Vector[float64](x)),
			session.Named("y", buffers.Vector[float64](y)),
		); err != nil {
			return err
		}
		if err := plt.Flush(); err != nil {
			return err
		}
		time.Sleep(30 * time.Millisecond)
	}
	logger.Info().Int("frames", frames).Msg("sine sweep sent")

	const rows, cols = 64, 64
	z, err := buffers.ZeroMatrix[float64](rows, cols)
	if err != nil {
		return err
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			u := float64(r) / float64(rows-1)
			v := float64(c) / float64(cols-1)
			z.Set(r, c, math.Sin(u*math.Pi)*math.Cos(v*math.Pi))
		}
	}

	_ = plt.Push("z = z.reshape(64, 64)")
	_ = plt.PushRaw(`
		fig = plt.figure()
		ax = fig.add_subplot(projection='3d')
		uu, vv = np.meshgrid(np.arange(z.shape[1]), np.arange(z.shape[0]))
		ax.plot_surface(uu, vv, z, cmap='viridis')
		plt.show()
	`)
	if err := plt.SendBuffers(session.Named("z", z)); err != nil {
		return err
	}
	if err := plt.Flush(); err != nil {
		return err
	}
	logger.Info().Msg("surface sent")
	return nil
}
