package schemas

import "github.com/JonMunkholm/fieldmap/internal/core"

var (
	// MaterialTypes are the stock families materials are grouped by.
	MaterialTypes = []string{"Metal", "Plastic", "Composite", "Wood", "Other"}

	// FinishTypes are the finish processes the shop offers or subcontracts.
	FinishTypes = []string{"Anodize", "Powder Coat", "Plating", "Paint", "Passivate", "None"}
)

func init() {
	registerMaterials()
	registerFinishes()
}

func registerMaterials() {
	core.Register(&core.Schema{
		Entity:   "materials",
		Label:    "Materials",
		KeyField: "name",
		Fields: []core.SchemaField{
			{Key: "name", Label: "Material Name", Required: true, Type: core.FieldString},
			{Key: "type", Label: "Material Type", Required: true, Type: core.FieldSelect, Options: MaterialTypes},
			{Key: "grade", Label: "Grade", Type: core.FieldString},
			{Key: "costPerKg", Label: "Cost per kg", Required: true, Type: core.FieldNumber},
			{Key: "density", Label: "Density", Type: core.FieldNumber},
			{Key: "supplier", Label: "Supplier", Type: core.FieldString},
			{Key: "inStock", Label: "In Stock", Type: core.FieldBoolean},
		},
	})
}

func registerFinishes() {
	core.Register(&core.Schema{
		Entity:   "finishes",
		Label:    "Finishes",
		KeyField: "name",
		Fields: []core.SchemaField{
			{Key: "name", Label: "Finish Name", Required: true, Type: core.FieldString},
			{Key: "type", Label: "Finish Type", Required: true, Type: core.FieldSelect, Options: FinishTypes},
			{Key: "pricePerArea", Label: "Price per m2", Type: core.FieldNumber},
			{Key: "leadTimeDays", Label: "Lead Time (days)", Type: core.FieldNumber},
			{Key: "outsourced", Label: "Outsourced", Type: core.FieldBoolean},
		},
	})
}
