package arrivals

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// Eastern is the zone NJ Transit and MTA report local times in.
var Eastern *time.Location

func init() {
	var err error
	Eastern, err = time.LoadLocation("America/New_York")
	if err != nil {
		panic(fmt.Errorf("failed to load America/New_York timezone: %w", err))
	}
}
