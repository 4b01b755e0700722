package trafficlight

type moduleKeyType string

const (
	moduleKey moduleKeyType = "module"
)

type vehicleKeyType string

const (
	vehicleKey vehicleKeyType = "vehicle"
)
