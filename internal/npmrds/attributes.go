package npmrds

// VehicleClass enumerates the populations PHED reports delay for.
type VehicleClass int

const (
	VehAll VehicleClass = iota
	VehPass
	VehSingl
	VehCombi
	VehTruck
)

var vehicleClassNames = [...]string{"all", "pass", "singl", "combi", "truck"}

func (vc VehicleClass) String() string {
	if vc < 0 || int(vc) >= len(vehicleClassNames) {
		return "unknown"
	}
	return vehicleClassNames[vc]
}

// VehicleClassesForSource lists the vehicle classes reported for a data source.
func VehicleClassesForSource(src DataSource) []VehicleClass {
	switch src {
	case Pass:
		return []VehicleClass{VehPass}
	case Truck:
		return []VehicleClass{VehSingl, VehCombi, VehTruck}
	default:
		return []VehicleClass{VehAll}
	}
}

// Segment attribute names as requested from the metadata source.
const (
	AttrTmc                      = "tmc"
	AttrState                    = "state"
	AttrMiles                    = "miles"
	AttrAvgSpeedLimit            = "avgSpeedlimit"
	AttrFunctionalClass          = "functionalClass"
	AttrCongestionLevel          = "congestionLevel"
	AttrDirectionality           = "directionality"
	AttrIsPrimary                = "isprimary"
	AttrStartLat                 = "startlat"
	AttrStartLong                = "startlong"
	AttrEndLat                   = "endlat"
	AttrEndLong                  = "endlong"
	AttrDirectionalAadt          = "directionalAadt"
	AttrDirectionalAadtPass      = "directionalAadtPass"
	AttrDirectionalAadtSingl     = "directionalAadtSingl"
	AttrDirectionalAadtCombi     = "directionalAadtCombi"
	AttrDirectionalAadtTruck     = "directionalAadtTruck"
	AttrAvgVehicleOccupancy      = "avgVehicleOccupancy"
	AttrAvgVehicleOccupancyPass  = "avgVehicleOccupancyPass"
	AttrAvgVehicleOccupancySingl = "avgVehicleOccupancySingl"
	AttrAvgVehicleOccupancyCombi = "avgVehicleOccupancyCombi"
	AttrAvgVehicleOccupancyTruck = "avgVehicleOccupancyTruck"
)

var directionalAadtAttrs = [...]string{
	VehAll:   AttrDirectionalAadt,
	VehPass:  AttrDirectionalAadtPass,
	VehSingl: AttrDirectionalAadtSingl,
	VehCombi: AttrDirectionalAadtCombi,
	VehTruck: AttrDirectionalAadtTruck,
}

var avgVehicleOccupancyAttrs = [...]string{
	VehAll:   AttrAvgVehicleOccupancy,
	VehPass:  AttrAvgVehicleOccupancyPass,
	VehSingl: AttrAvgVehicleOccupancySingl,
	VehCombi: AttrAvgVehicleOccupancyCombi,
	VehTruck: AttrAvgVehicleOccupancyTruck,
}

// DirectionalAadtAttr is the metadata attribute holding a class's directional AADT.
func DirectionalAadtAttr(vc VehicleClass) string { return directionalAadtAttrs[vc] }

// AvgVehicleOccupancyAttr is the metadata attribute holding a class's AVO.
func AvgVehicleOccupancyAttr(vc VehicleClass) string { return avgVehicleOccupancyAttrs[vc] }

// SegmentAttributes are the static facts of one TMC. Fields the metadata
// source was not asked for stay zero.
type SegmentAttributes struct {
	Tmc             string
	State           string
	Miles           float64
	AvgSpeedLimit   float64
	FunctionalClass FunctionalClass
	CongestionLevel CongestionLevel
	Directionality  Directionality
	IsPrimary       bool

	StartLat, StartLong float64
	EndLat, EndLong     float64

	DirectionalAadt      float64
	DirectionalAadtPass  float64
	DirectionalAadtSingl float64
	DirectionalAadtCombi float64
	DirectionalAadtTruck float64

	AvgVehicleOccupancy      float64
	AvgVehicleOccupancyPass  float64
	AvgVehicleOccupancySingl float64
	AvgVehicleOccupancyCombi float64
	AvgVehicleOccupancyTruck float64
}

func (a SegmentAttributes) DirectionalAadtFor(vc VehicleClass) float64 {
	switch vc {
	case VehPass:
		return a.DirectionalAadtPass
	case VehSingl:
		return a.DirectionalAadtSingl
	case VehCombi:
		return a.DirectionalAadtCombi
	case VehTruck:
		return a.DirectionalAadtTruck
	default:
		return a.DirectionalAadt
	}
}

func (a SegmentAttributes) AvgVehicleOccupancyFor(vc VehicleClass) float64 {
	switch vc {
	case VehPass:
		return a.AvgVehicleOccupancyPass
	case VehSingl:
		return a.AvgVehicleOccupancySingl
	case VehCombi:
		return a.AvgVehicleOccupancyCombi
	case VehTruck:
		return a.AvgVehicleOccupancyTruck
	default:
		return a.AvgVehicleOccupancy
	}
}

// MarshalText lets vehicle classes key JSON objects by name.
func (vc VehicleClass) MarshalText() ([]byte, error) {
	return []byte(vc.String()), nil
}
