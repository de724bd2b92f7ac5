package sensor

import (
	"sort"
	"strconv"
	"strings"
)

// WeatherStationBuilding is the building every weather sensor is assigned to.
const WeatherStationBuilding = "House 10"

// Buildings maps the gateway's house identifiers to their friendly names.
var Buildings = map[string]string{
	"House 1":              "1910s Terrace Left",
	"House 2":              "1910s Terrace Mid",
	"House 3":              "1910s Terrace Right",
	"House 4":              "1930s Semi-Detached Left",
	"House 5":              "1930s Semi-Detached Right",
	"House 6":              "1950s Bungalow",
	"House 7":              "1970s Ground Floor Flat",
	"House 8":              "1970s First Floor Flat",
	"House 9":              "1990s Detached",
	WeatherStationBuilding: "Weather Stations",
}

// HouseForBuilding returns the house identifier whose friendly name is name.
func HouseForBuilding(name string) (string, bool) {
	for house, friendly := range Buildings {
		if friendly == name {
			return house, true
		}
	}
	return "", false
}

// Topic returns the broker topic a building's values are published to,
// e.g. "House 2" becomes "house_2".
func Topic(building string) string {
	return strings.ReplaceAll(strings.ToLower(building), " ", "_")
}

// Topics returns the topic of every known building in house-number order.
func Topics() []string {
	houses := make([]string, 0, len(Buildings))
	for house := range Buildings {
		houses = append(houses, house)
	}
	sort.Slice(houses, func(i, j int) bool {
		return houseNumber(houses[i]) < houseNumber(houses[j])
	})

	topics := make([]string, len(houses))
	for i, house := range houses {
		topics[i] = Topic(house)
	}
	return topics
}

func houseNumber(house string) int {
	n, _ := strconv.Atoi(strings.TrimPrefix(house, "House "))
	return n
}
