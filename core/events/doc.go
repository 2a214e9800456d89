// Package events defines the closed vocabulary exchanged between the world
// runtime and the dispatcher.
//
// Commands flow from the dispatcher to the world:
//   - spawn_robot, return_to_base, pick_food, deliver_food, food_start
//
// Reports flow from the world to the dispatcher:
//   - new_order, arrived_at_base, low_battery, battery_depleted,
//     arrived_at_restaurant, food_picked_up, food_ready, food_delivered,
//     backpack_emptied
//
// Each kind carries exactly the fields listed in its schema. Encoding emits
// only those fields and decoding rejects an event with a missing field. A
// batch is the unit of transmission: one encoded JSON array per side per tick.
package events
