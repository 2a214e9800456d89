package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kilianp07/robodelivery/core/model"
)

var (
	// ErrUnknownKind is reported for an event whose tag is not in the vocabulary.
	ErrUnknownKind = errors.New("unknown event kind")
	// ErrMissingField is reported when an event lacks a field required by its kind.
	ErrMissingField = errors.New("missing required field")
)

// DecodeError describes why a single event of a batch was skipped.
type DecodeError struct {
	Index int
	Kind  Kind
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("event %d (%s): %v: %s", e.Index, e.Kind, e.Err, e.Field)
	}
	return fmt.Sprintf("event %d (%s): %v", e.Index, e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Event is one message of the vocabulary. Only the fields listed in the
// kind's schema are meaningful; the others are left at their zero value.
type Event struct {
	Kind         Kind
	OrderNumber  int
	RobotNumber  int
	BatteryRange int
	Food         model.Food
	Address      model.Point
	Restaurant   model.Point
	// Revisit is set on arrived_at_restaurant when a robot already waiting at
	// the restaurant retries collection.
	Revisit bool
}

// MarshalJSON emits the kind tag and exactly the fields of the kind.
func (e Event) MarshalJSON() ([]byte, error) {
	fields, ok := schema[e.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	out := make(map[string]any, len(fields)+2)
	out["kind"] = e.Kind
	for _, f := range fields {
		out[string(f)] = e.value(f)
	}
	if e.Kind == KindArrivedAtRestaurant && e.Revisit {
		out[string(fieldRevisit)] = true
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes an event and enforces the field presence of its kind.
// Errors wrap ErrUnknownKind or ErrMissingField.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var kind Kind
	if k, ok := raw["kind"]; ok {
		if err := json.Unmarshal(k, &kind); err != nil {
			return fmt.Errorf("kind: %w", err)
		}
	}
	fields, ok := schema[kind]
	if !ok {
		return &DecodeError{Kind: kind, Err: ErrUnknownKind}
	}
	ev := Event{Kind: kind}
	for _, f := range fields {
		v, ok := raw[string(f)]
		if !ok || string(v) == "null" {
			return &DecodeError{Kind: kind, Field: string(f), Err: ErrMissingField}
		}
		if err := json.Unmarshal(v, ev.target(f)); err != nil {
			return fmt.Errorf("%s.%s: %w", kind, f, err)
		}
	}
	if v, ok := raw[string(fieldRevisit)]; ok && kind == KindArrivedAtRestaurant {
		if err := json.Unmarshal(v, &ev.Revisit); err != nil {
			return fmt.Errorf("%s.%s: %w", kind, fieldRevisit, err)
		}
	}
	*e = ev
	return nil
}

func (e Event) value(f field) any {
	switch f {
	case fieldOrder:
		return e.OrderNumber
	case fieldRobot:
		return e.RobotNumber
	case fieldBattery:
		return e.BatteryRange
	case fieldFood:
		return e.Food
	case fieldAddress:
		return e.Address
	case fieldRestaurant:
		return e.Restaurant
	}
	return nil
}

func (e *Event) target(f field) any {
	switch f {
	case fieldOrder:
		return &e.OrderNumber
	case fieldRobot:
		return &e.RobotNumber
	case fieldBattery:
		return &e.BatteryRange
	case fieldFood:
		return &e.Food
	case fieldAddress:
		return &e.Address
	case fieldRestaurant:
		return &e.Restaurant
	}
	return nil
}

func (e Event) String() string {
	switch {
	case e.Kind == KindNewOrder || e.Kind == KindFoodStart || e.Kind == KindFoodReady ||
		e.Kind == KindFoodPickedUp || e.Kind == KindFoodDelivered:
		return fmt.Sprintf("%s(order=%d)", e.Kind, e.OrderNumber)
	case e.Kind == KindPickFood || e.Kind == KindDeliverFood:
		return fmt.Sprintf("%s(robot=%d, order=%d)", e.Kind, e.RobotNumber, e.OrderNumber)
	default:
		return fmt.Sprintf("%s(robot=%d)", e.Kind, e.RobotNumber)
	}
}

// NewOrder reports a customer order placed at restaurant for delivery to address.
func NewOrder(order int, food model.Food, address, restaurant model.Point) Event {
	return Event{Kind: KindNewOrder, OrderNumber: order, Food: food, Address: address, Restaurant: restaurant}
}

// SpawnRobot activates robot with a full battery of batteryRange steps.
func SpawnRobot(robot, batteryRange int) Event {
	return Event{Kind: KindSpawnRobot, RobotNumber: robot, BatteryRange: batteryRange}
}

func ReturnToBase(robot int) Event    { return Event{Kind: KindReturnToBase, RobotNumber: robot} }
func ArrivedAtBase(robot int) Event   { return Event{Kind: KindArrivedAtBase, RobotNumber: robot} }
func LowBattery(robot int) Event      { return Event{Kind: KindLowBattery, RobotNumber: robot} }
func BatteryDepleted(robot int) Event { return Event{Kind: KindBatteryDepleted, RobotNumber: robot} }
func BackpackEmptied(robot int) Event { return Event{Kind: KindBackpackEmptied, RobotNumber: robot} }

// ArrivedAtRestaurant reports a robot reaching restaurant. revisit marks a
// retry by a robot already waiting there.
func ArrivedAtRestaurant(robot int, restaurant model.Point, revisit bool) Event {
	return Event{Kind: KindArrivedAtRestaurant, RobotNumber: robot, Restaurant: restaurant, Revisit: revisit}
}

// PickFood sends robot to restaurant to collect order.
func PickFood(robot int, restaurant model.Point, order int, food model.Food) Event {
	return Event{Kind: KindPickFood, RobotNumber: robot, Restaurant: restaurant, OrderNumber: order, Food: food}
}

func FoodPickedUp(order int, restaurant model.Point, food model.Food) Event {
	return Event{Kind: KindFoodPickedUp, OrderNumber: order, Restaurant: restaurant, Food: food}
}

func FoodReady(order int, restaurant model.Point, food model.Food) Event {
	return Event{Kind: KindFoodReady, OrderNumber: order, Restaurant: restaurant, Food: food}
}

// DeliverFood sends robot to address with the food of order.
func DeliverFood(robot int, address model.Point, order int, food model.Food) Event {
	return Event{Kind: KindDeliverFood, RobotNumber: robot, Address: address, OrderNumber: order, Food: food}
}

func FoodDelivered(order int, address model.Point) Event {
	return Event{Kind: KindFoodDelivered, OrderNumber: order, Address: address}
}

// FoodStart asks the restaurant to start preparing order.
func FoodStart(restaurant model.Point, order int, food model.Food) Event {
	return Event{Kind: KindFoodStart, Restaurant: restaurant, OrderNumber: order, Food: food}
}
