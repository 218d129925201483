package model

import "fmt"

// SlotKind identifies how raw user text is coerced for a slot
type SlotKind string

const (
	SlotInt    SlotKind = "int"    // integer value, supports "40 thousand" / "40 אלף" shorthand
	SlotText   SlotKind = "text"   // free text, trimmed
	SlotChoice SlotKind = "choice" // categorical, matched against Options
)

// Slot describes one fact the questionnaire elicits from the user
type Slot struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Prompt   string   `json:"prompt"`
	Kind     SlotKind `json:"kind"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"` // only for SlotChoice
}

// Registry holds the ordered slot definitions for a session
type Registry struct {
	slots []Slot
	byKey map[string]Slot
}

// NewRegistry builds a registry and rejects duplicate slot keys.
// A duplicate key is a configuration error and must abort startup.
func NewRegistry(slots []Slot) (*Registry, error) {
	byKey := make(map[string]Slot, len(slots))
	for _, s := range slots {
		if _, exists := byKey[s.Key]; exists {
			return nil, fmt.Errorf("duplicate slot key: %s", s.Key)
		}
		byKey[s.Key] = s
	}
	return &Registry{slots: slots, byKey: byKey}, nil
}

// Slots returns all slot definitions in registry order
func (r *Registry) Slots() []Slot {
	return r.slots
}

// Get returns the slot definition for a key
func (r *Registry) Get(key string) (Slot, bool) {
	s, ok := r.byKey[key]
	return s, ok
}

// RequiredKeys returns the keys of all required slots in registry order
func (r *Registry) RequiredKeys() []string {
	keys := make([]string, 0, len(r.slots))
	for _, s := range r.slots {
		if s.Required {
			keys = append(keys, s.Key)
		}
	}
	return keys
}

// FirstRequired returns the first required slot (used for the greeting)
func (r *Registry) FirstRequired() (Slot, bool) {
	for _, s := range r.slots {
		if s.Required {
			return s, true
		}
	}
	return Slot{}, false
}

// DefaultSlots returns the used-car questionnaire
func DefaultSlots() []Slot {
	return []Slot{
		{Key: "budget_min", Label: "Minimum budget (ILS)", Prompt: "What is your minimum budget in ILS?", Kind: SlotInt, Required: true},
		{Key: "budget_max", Label: "Maximum budget (ILS)", Prompt: "What is your maximum budget in ILS?", Kind: SlotInt, Required: true},
		{Key: "body", Label: "Body type", Prompt: "What kind of car are you looking for? (family, compact, SUV, sedan, mini)", Kind: SlotChoice, Required: true,
			Options: []string{"family", "compact", "SUV", "sedan", "mini"}},
		{Key: "usage", Label: "Main usage", Prompt: "Will you drive mostly in the city, intercity or off-road?", Kind: SlotChoice, Required: true,
			Options: []string{"city", "intercity", "off-road", "mixed"}},
		{Key: "priority", Label: "Top priority", Prompt: "What matters most to you - reliability, comfort, performance or design?", Kind: SlotChoice, Required: true,
			Options: []string{"reliability", "comfort", "performance", "design"}},
		{Key: "passengers", Label: "Average passengers", Prompt: "How many passengers will usually ride in the car?", Kind: SlotInt, Required: true},
		{Key: "fuel", Label: "Fuel type", Prompt: "Which fuel type do you prefer - petrol, diesel, hybrid or electric?", Kind: SlotChoice, Required: true,
			Options: []string{"petrol", "diesel", "hybrid", "electric"}},
		{Key: "year_min", Label: "Minimum model year", Prompt: "From which model year onwards?", Kind: SlotInt, Required: true},
		{Key: "km_per_year", Label: "Kilometers per year", Prompt: "Roughly how many kilometers do you drive per year?", Kind: SlotInt, Required: true},
		{Key: "gearbox", Label: "Gearbox", Prompt: "Automatic or manual?", Kind: SlotChoice, Required: true,
			Options: []string{"automatic", "manual"}},
		{Key: "region", Label: "Region", Prompt: "In which region of the country do you live?", Kind: SlotText, Required: true},
		{Key: "engine_size", Label: "Engine displacement (cc)", Prompt: "What engine displacement do you prefer, in cc?", Kind: SlotInt, Required: true},
		{Key: "brand_pref", Label: "Preferred brand", Prompt: "Do you have a preferred brand?", Kind: SlotText, Required: false},
		{Key: "max_km", Label: "Maximum mileage", Prompt: "What is the maximum mileage you would accept?", Kind: SlotInt, Required: false},
		{Key: "turbo", Label: "Turbo", Prompt: "Do you want a turbocharged engine?", Kind: SlotChoice, Required: false,
			Options: []string{"turbo", "no turbo", "either"}},
	}
}
