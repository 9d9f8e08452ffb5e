package model

// Class is the object category a violation is attributed to.
type Class string

const (
	ClassPerson     Class = "Person"
	ClassBicycle    Class = "Bicycle"
	ClassCar        Class = "Car"
	ClassMotorcycle Class = "Motorcycle"
	ClassBus        Class = "Bus"
	ClassTruck      Class = "Truck"
	ClassUnknown    Class = "Unknown"
)

// UnknownName labels a person whose face has not been matched.
const UnknownName = "Unknown"

// cocoClasses maps COCO class ids to the monitored categories.
var cocoClasses = map[int]Class{
	0: ClassPerson,
	1: ClassBicycle,
	2: ClassCar,
	3: ClassMotorcycle,
	5: ClassBus,
	7: ClassTruck,
}

// MonitoredCOCOClasses is the detector allow-list, in COCO id order.
var MonitoredCOCOClasses = []int{0, 1, 2, 3, 5, 7}

// ClassFromCOCO returns the category for a COCO class id, or ClassUnknown.
func ClassFromCOCO(id int) Class {
	if c, ok := cocoClasses[id]; ok {
		return c
	}
	return ClassUnknown
}

// Valid reports whether c is one of the monitored categories.
func (c Class) Valid() bool {
	switch c {
	case ClassPerson, ClassBicycle, ClassCar, ClassMotorcycle, ClassBus, ClassTruck:
		return true
	}
	return false
}
