package lattice

import (
	"testing"

	"github.com/liveshop-next/internal/constants"
)

func TestOrderHappyPath(t *testing.T) {
	path := []string{
		constants.OrderStatusPending,
		constants.OrderStatusConfirmed,
		constants.OrderStatusPreparing,
		constants.OrderStatusReadyForPickup,
		constants.OrderStatusPickedUp,
		constants.OrderStatusInTransit,
		constants.OrderStatusDelivered,
	}
	for i := 0; i < len(path)-1; i++ {
		if !IsLegal(constants.EntityKindOrder, path[i], path[i+1]) {
			t.Fatalf("expected %s -> %s to be legal", path[i], path[i+1])
		}
	}
}

func TestDeliveryHappyPath(t *testing.T) {
	path := []string{
		constants.DeliveryStatusPending,
		constants.DeliveryStatusSearchingDriver,
		constants.DeliveryStatusDriverAssigned,
		constants.DeliveryStatusDriverAccepted,
		constants.DeliveryStatusAtPickup,
		constants.DeliveryStatusPickedUp,
		constants.DeliveryStatusInTransit,
		constants.DeliveryStatusAtDropoff,
		constants.DeliveryStatusDelivered,
	}
	for i := 0; i < len(path)-1; i++ {
		if !IsLegal(constants.EntityKindDelivery, path[i], path[i+1]) {
			t.Fatalf("expected %s -> %s to be legal", path[i], path[i+1])
		}
	}
}

func TestNoSkippingStates(t *testing.T) {
	cases := [][2]string{
		{constants.OrderStatusPending, constants.OrderStatusPreparing},
		{constants.OrderStatusPending, constants.OrderStatusDelivered},
		{constants.OrderStatusConfirmed, constants.OrderStatusInTransit},
		{constants.OrderStatusPickedUp, constants.OrderStatusDelivered},
	}
	for _, c := range cases {
		if IsLegal(constants.EntityKindOrder, c[0], c[1]) {
			t.Fatalf("expected %s -> %s to be illegal", c[0], c[1])
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	orderTerminals := []string{
		constants.OrderStatusDelivered,
		constants.OrderStatusCancelled,
		constants.OrderStatusRefunded,
		constants.OrderStatusFailed,
		constants.OrderStatusResolved,
	}
	for _, s := range orderTerminals {
		if !IsTerminal(constants.EntityKindOrder, s) {
			t.Fatalf("expected order status %s to be terminal", s)
		}
		if next := AllowedNext(constants.EntityKindOrder, s); len(next) != 0 {
			t.Fatalf("terminal status %s has successors %v", s, next)
		}
	}
	deliveryTerminals := []string{
		constants.DeliveryStatusDelivered,
		constants.DeliveryStatusFailed,
		constants.DeliveryStatusCancelled,
	}
	for _, s := range deliveryTerminals {
		if !IsTerminal(constants.EntityKindDelivery, s) {
			t.Fatalf("expected delivery status %s to be terminal", s)
		}
	}
}

func TestUnknownStatusIsIllegal(t *testing.T) {
	if IsLegal(constants.EntityKindOrder, "shipped", constants.OrderStatusDelivered) {
		t.Fatal("unknown from-status must be illegal")
	}
	if IsLegal(constants.EntityKindOrder, constants.OrderStatusPending, "shipped") {
		t.Fatal("unknown to-status must be illegal")
	}
	if IsLegal("shipment", constants.OrderStatusPending, constants.OrderStatusConfirmed) {
		t.Fatal("unknown entity kind must be illegal")
	}
	if IsValid(constants.EntityKindDelivery, "driver_pending") {
		t.Fatal("unknown delivery status must be invalid")
	}
}

func TestEveryEdgeTargetIsValidStatus(t *testing.T) {
	for _, kind := range []string{constants.EntityKindOrder, constants.EntityKindDelivery} {
		for _, from := range Statuses(kind) {
			for _, to := range AllowedNext(kind, from) {
				if !IsValid(kind, to) {
					t.Fatalf("%s edge %s -> %s points at unknown status", kind, from, to)
				}
			}
		}
	}
}

func TestRejectReturnsToSearching(t *testing.T) {
	if !IsLegal(constants.EntityKindDelivery, constants.DeliveryStatusDriverAssigned, constants.DeliveryStatusSearchingDriver) {
		t.Fatal("driver_assigned must be able to fall back to searching_driver")
	}
}
