package booking

import "fmt"

// ServiceCategory is one of the fixed set of home services offered.
type ServiceCategory string

const (
	ServiceCleaning    ServiceCategory = "cleaning"
	ServicePlumbing    ServiceCategory = "plumbing"
	ServiceElectrical  ServiceCategory = "electrical"
	ServiceACRepair    ServiceCategory = "ac-repair"
	ServicePainting    ServiceCategory = "painting"
	ServiceCarpentry   ServiceCategory = "carpentry"
	ServicePestControl ServiceCategory = "pest-control"
)

// IsValid returns true if the category is a recognized service.
func (s ServiceCategory) IsValid() bool {
	switch s {
	case ServiceCleaning, ServicePlumbing, ServiceElectrical, ServiceACRepair,
		ServicePainting, ServiceCarpentry, ServicePestControl:
		return true
	}
	return false
}

// String returns the string representation of the category.
func (s ServiceCategory) String() string {
	return string(s)
}

// ParseServiceCategory converts a string to a ServiceCategory, returning an error if invalid.
func ParseServiceCategory(s string) (ServiceCategory, error) {
	category := ServiceCategory(s)
	if !category.IsValid() {
		return "", fmt.Errorf("invalid service category: %s", s)
	}
	return category, nil
}
