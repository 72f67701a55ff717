package models

// EntityType identifies which layer of the hierarchy a code resolved to.
type EntityType string

const (
	EntityTypeComponent EntityType = "component"
	EntityTypePackage   EntityType = "package"
	EntityTypePallet    EntityType = "pallet"
)

// PackageWithComponents is a package enriched with its component union and
// the reconciled component total used for display.
type PackageWithComponents struct {
	Package
	Components     []Component `json:"components"`
	ComponentTotal int         `json:"component_total"`
}

// ResolvedEntity is the unified search result. Type decides which of the
// payload fields are populated:
//
//	component: Component, plus the sibling Components of its package when
//	           the component is linked to one
//	package:   Package, Components, ComponentTotal
//	pallet:    Pallet, Packages (each with its own component union),
//	           PackageTotal
type ResolvedEntity struct {
	Type           EntityType              `json:"type"`
	MatchedCode    string                  `json:"matched_code"`
	Component      *Component              `json:"component,omitempty"`
	Package        *Package                `json:"package,omitempty"`
	Pallet         *Pallet                 `json:"pallet,omitempty"`
	Components     []Component             `json:"components,omitempty"`
	Packages       []PackageWithComponents `json:"packages,omitempty"`
	ComponentTotal int                     `json:"component_total,omitempty"`
	PackageTotal   int                     `json:"package_total,omitempty"`
}
