package schemas

import "github.com/JonMunkholm/fieldmap/internal/core"

// PaymentTerms are the invoice terms a customer can be on.
var PaymentTerms = []string{"Prepaid", "Net 15", "Net 30", "Net 60"}

func init() {
	registerCustomers()
}

func registerCustomers() {
	core.Register(&core.Schema{
		Entity:   "customers",
		Label:    "Customers",
		KeyField: "email",
		Fields: []core.SchemaField{
			{Key: "company", Label: "Company Name", Required: true, Type: core.FieldString},
			{Key: "contactName", Label: "Contact Name", Type: core.FieldString},
			{Key: "email", Label: "Email", Required: true, Type: core.FieldEmail},
			{Key: "phone", Label: "Phone", Type: core.FieldString},
			{Key: "paymentTerms", Label: "Payment Terms", Type: core.FieldSelect, Options: PaymentTerms},
			{Key: "discount", Label: "Discount %", Type: core.FieldNumber},
			{Key: "taxExempt", Label: "Tax Exempt", Type: core.FieldBoolean},
		},
	})
}
