/*
Package events provides an in-memory, best-effort pub/sub broker for
registry lifecycle notifications — package creation, version upload
outcomes, and catalog snapshot generation.

A Broker broadcasts every published Event to every current Subscriber
over a buffered channel; a slow subscriber drops events rather than
blocking the publisher, since nothing in this registry depends on
event delivery for correctness (pkg/ingestion and pkg/storage persist
the real state transitions independently).

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			log.Info(fmt.Sprintf("%s: %s", event.Type, event.Message))
		}
	}()

	broker.Publish(&events.Event{
		Type:    events.EventVersionUploaded,
		Message: "version 1.2.0 processed",
		Metadata: map[string]string{"package_id": pkg.ID},
	})

# Integration Points

  - pkg/ingestion: publishes version.uploaded / version.failed /
    version.retried as jobs reach terminal states
  - pkg/ingestionapi: publishes package.created on registration
  - pkg/catalog: publishes catalog.snapshot after each write
*/
package events
