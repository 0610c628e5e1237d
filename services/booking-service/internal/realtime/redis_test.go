package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/storefront-labs/frontdesk/services/booking-service/internal/events"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/model"
)

func TestRelaySkipsOwnAndMalformedMessages(t *testing.T) {
	var got []events.Event
	local := events.PublisherFunc(func(_ context.Context, e events.Event) { got = append(got, e) })
	b := NewRedisBridge(nil, "", local, discardLogger())

	e := events.Created(appt("a1", 1, model.StatusPending))
	encode := func(origin string) string {
		raw, err := json.Marshal(envelope{Origin: origin, Event: e})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return string(raw)
	}

	ctx := context.Background()
	if b.relay(ctx, encode(b.origin)) {
		t.Fatalf("own message relayed")
	}
	if b.relay(ctx, "{not json") {
		t.Fatalf("malformed message relayed")
	}
	if !b.relay(ctx, encode("other-instance")) {
		t.Fatalf("peer message not relayed")
	}
	if len(got) != 1 || got[0].ID != e.ID {
		t.Fatalf("relayed %+v", got)
	}
}
