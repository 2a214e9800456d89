package events

// Kind tags an event.
type Kind string

const (
	KindNewOrder            Kind = "new_order"
	KindSpawnRobot          Kind = "spawn_robot"
	KindReturnToBase        Kind = "return_to_base"
	KindArrivedAtBase       Kind = "arrived_at_base"
	KindLowBattery          Kind = "low_battery"
	KindBatteryDepleted     Kind = "battery_depleted"
	KindArrivedAtRestaurant Kind = "arrived_at_restaurant"
	KindPickFood            Kind = "pick_food"
	KindFoodPickedUp        Kind = "food_picked_up"
	KindFoodReady           Kind = "food_ready"
	KindDeliverFood         Kind = "deliver_food"
	KindFoodDelivered       Kind = "food_delivered"
	KindBackpackEmptied     Kind = "backpack_emptied"
	KindFoodStart           Kind = "food_start"
)

type field string

const (
	fieldOrder      field = "order_number"
	fieldRobot      field = "robot_number"
	fieldBattery    field = "battery_range"
	fieldFood       field = "food"
	fieldAddress    field = "address"
	fieldRestaurant field = "restaurant"
	fieldRevisit    field = "revisit"
)

// schema lists the required fields of every known kind.
var schema = map[Kind][]field{
	KindNewOrder:            {fieldOrder, fieldFood, fieldAddress, fieldRestaurant},
	KindSpawnRobot:          {fieldRobot, fieldBattery},
	KindReturnToBase:        {fieldRobot},
	KindArrivedAtBase:       {fieldRobot},
	KindLowBattery:          {fieldRobot},
	KindBatteryDepleted:     {fieldRobot},
	KindArrivedAtRestaurant: {fieldRobot, fieldRestaurant},
	KindPickFood:            {fieldRobot, fieldRestaurant, fieldOrder, fieldFood},
	KindFoodPickedUp:        {fieldOrder, fieldRestaurant, fieldFood},
	KindFoodReady:           {fieldOrder, fieldRestaurant, fieldFood},
	KindDeliverFood:         {fieldRobot, fieldAddress, fieldOrder, fieldFood},
	KindFoodDelivered:       {fieldOrder, fieldAddress},
	KindBackpackEmptied:     {fieldRobot},
	KindFoodStart:           {fieldRestaurant, fieldOrder, fieldFood},
}

var commands = map[Kind]bool{
	KindSpawnRobot:   true,
	KindReturnToBase: true,
	KindPickFood:     true,
	KindDeliverFood:  true,
	KindFoodStart:    true,
}

// Known reports whether k belongs to the vocabulary.
func (k Kind) Known() bool {
	_, ok := schema[k]
	return ok
}

// IsCommand reports whether k is issued by the dispatcher for the world to apply.
func (k Kind) IsCommand() bool { return commands[k] }

func (k Kind) String() string { return string(k) }

// Kinds returns every known kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindNewOrder, KindSpawnRobot, KindReturnToBase, KindArrivedAtBase,
		KindLowBattery, KindBatteryDepleted, KindArrivedAtRestaurant, KindPickFood,
		KindFoodPickedUp, KindFoodReady, KindDeliverFood, KindFoodDelivered,
		KindBackpackEmptied, KindFoodStart,
	}
}
