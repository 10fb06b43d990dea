// Package gopyplot streams typed numeric buffers and plot-script text from
// a running Go process to an external renderer, typically a Python process
// subscribed to the same NATS subject.
//
// The producer never blocks on rendering: buffers go out as zero-copy
// messages over fire-and-forget pub/sub, the renderer executes the script
// text against the received arrays, and the Go side moves on.
//
// # Architecture
//
// The library is organized into layers:
//
//   - Plotter: facade wiring broker, publisher, renderer process, session
//   - session: batch sequencing and the validation gate
//   - wire: type registry, header format, control sentinels
//   - buffers: zero-copy vector and matrix adapters over Go slices
//   - dedent: indentation normalization for inline script fragments
//   - transport: NATS publisher and the embedded broker
//   - config: injected endpoint and renderer-launch settings
//
// # Basic Usage
//
//	plt, err := gopyplot.New(config.Default())
//	if err != nil {
//		return err
//	}
//	defer plt.Close()
//
//	x := make([]float64, 100)
//	y := make([]float64, 100)
//	// ... fill x and y ...
//
//	plt.PushRaw(`
//		plt.plot(x, y)
//		plt.grid(True)
//		plt.show()
//	`)
//	plt.SendBuffers(
//		session.Named("x", buffers.Vector[float64](x)),
//		session.Named("y", buffers.Vector[float64](y)),
//	)
//	plt.Flush()
//
// # Wire Format
//
// Each buffer travels as a pipe-delimited ASCII header message followed by
// the raw payload bytes; a batch ends with the accumulated command text and
// the "finalize" sentinel. See the wire and session package documentation
// for the exact framing.
package gopyplot
