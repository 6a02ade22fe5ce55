package booking

// Venues is the static directory mapping region names to the pool venue ids
// captured from the app. Informational only; venue ids are passed through to
// the upstream uninterpreted.
func Venues() map[string]map[string]string {
	return map[string]map[string]string{
		"new_york": {
			"pool":                "NY_POOL",
			"poolside_restaurant": "NY_POOLSIDE",
			"premium_pool":        "NY_PREM_POOL",
		},
		"miami": {
			"pool":    "MIAMI_POOL",
			"cabanas": "MIAMI_CABANAS",
		},
		"white_city": {
			"pool": "WC_POOL",
		},
		"shoreditch": {
			"pool": "SHP_POOL",
		},
		"barcelona": {
			"pool": "BCL_POOL",
		},
		"dumbo": {
			"pool":         "DUMBO_POOL",
			"premium_pool": "DUMBO_PREM_POOL",
		},
		"chicago": {
			"pool": "CHIGO_POOL",
		},
		"los_angeles": {
			"pool_deck": "DTLA_POOL_DECK",
		},
	}
}
