// Package transport publishes framed messages over core NATS.
//
// The library's wire contract is a sequence of discrete messages on one
// subject; this package supplies the two pieces that carry it:
//
//   - Publisher: a thin client over a NATS connection, publishing every
//     message to a single subject.
//   - Broker: an embedded NATS server running inside the producer process,
//     for the self-hosted topology where the producer owns the endpoint and
//     consumers dial in.
//
// # Delivery Model
//
// Publishing is fire-and-forget core NATS (no JetStream): a Send returns
// once the client has accepted the message, Flush round-trips to the server
// to confirm everything published so far has been processed, and nothing is
// ever redelivered. Consumers that are not subscribed when a message is
// published never see it. Per-connection, per-subject ordering is
// guaranteed, which is what the batch framing relies on.
//
// Publish copies data into the connection's write buffer before returning,
// so callers may reuse or mutate their buffers immediately after Send.
//
// # Usage
//
// Self-hosted, with the broker embedded:
//
//	broker, err := transport.StartBroker(transport.BrokerOptions{Port: 5555})
//	if err != nil {
//		return err
//	}
//	defer broker.Shutdown()
//
//	pub, err := transport.Connect(broker.ClientURL(), transport.DefaultSubject)
//	if err != nil {
//		return err
//	}
//	defer pub.Close()
//
//	pub.Send([]byte("data|x|d|3|(3,)"))
//
// Against an external server, skip the broker and pass its URL to Connect.
//
// # Debugging with the nats CLI
//
// Watch the raw message stream while a producer runs:
//
//	nats sub "gopyplot.data" -s nats://127.0.0.1:5555
//
// # Reference
//
// Core NATS semantics: https://docs.nats.io/nats-concepts/core-nats
package transport
