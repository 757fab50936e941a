package schemas

import "github.com/JonMunkholm/fieldmap/internal/core"

// ProcessCategories are the shop areas a process can belong to.
var ProcessCategories = []string{"Machining", "Fabrication", "Finishing", "Assembly", "Inspection"}

func init() {
	registerProcesses()
	registerRoutings()
}

func registerProcesses() {
	core.Register(&core.Schema{
		Entity:   "processes",
		Label:    "Processes",
		KeyField: "name",
		Fields: []core.SchemaField{
			{Key: "name", Label: "Process Name", Required: true, Type: core.FieldString},
			{Key: "category", Label: "Category", Type: core.FieldSelect, Options: ProcessCategories},
			{Key: "hourlyRate", Label: "Hourly Rate", Required: true, Type: core.FieldNumber},
			{Key: "setupTime", Label: "Setup Time", Type: core.FieldNumber},
			{Key: "machine", Label: "Machine", Type: core.FieldString},
			{Key: "description", Label: "Description", Type: core.FieldString},
			{Key: "active", Label: "Active", Type: core.FieldBoolean},
		},
	})
}

func registerRoutings() {
	core.Register(&core.Schema{
		Entity:   "routings",
		Label:    "Routings",
		KeyField: "routingCode",
		Fields: []core.SchemaField{
			{Key: "routingCode", Label: "Routing Code", Required: true, Type: core.FieldString},
			{Key: "partNumber", Label: "Part Number", Required: true, Type: core.FieldString},
			{Key: "sequence", Label: "Step", Required: true, Type: core.FieldNumber},
			{Key: "process", Label: "Process", Required: true, Type: core.FieldString},
			{Key: "cycleTime", Label: "Cycle Time", Type: core.FieldNumber},
			{Key: "notes", Label: "Notes", Type: core.FieldString},
		},
	})
}
