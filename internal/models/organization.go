package models

const (
	OrgHospital         = "Hospital"
	OrgBank             = "Bank"
	OrgGovernmentOffice = "Government Office"
	OrgRestaurant       = "Restaurant"
	OrgAirport          = "Airport"
	OrgDMV              = "DMV"
	OrgPostOffice       = "Post Office"
	OrgTelecomOffice    = "Telecom Office"
)

// RequiredDocumentsByOrg maps an organization to the document names a
// customer must prepare before arrival. Read as configuration when a
// ticket is booked; never computed.
var RequiredDocumentsByOrg = map[string][]string{
	OrgHospital:         {"Aadhar Card", "Appointment Confirmation PDF", "Medical Reference Letter"},
	OrgBank:             {"Aadhar Card", "Account Statement", "Service Request Form"},
	OrgGovernmentOffice: {"Aadhar Card", "Appointment Slip", "Application Form", "Supporting Documents"},
	OrgAirport:          {"Aadhar Card", "Flight Booking Confirmation", "Service Request Form"},
	OrgRestaurant:       {"Aadhar Card"},
	OrgDMV:              {"Aadhar Card", "Driving License Application", "Appointment Confirmation"},
	OrgPostOffice:       {"Aadhar Card", "Mail/Parcel Documents"},
	OrgTelecomOffice:    {"Aadhar Card", "SIM Request Form"},
}

func ValidOrganization(name string) bool {
	_, ok := RequiredDocumentsByOrg[name]
	return ok
}

// RequiredDocuments returns a copy so callers cannot mutate the table.
func RequiredDocuments(organization string) []string {
	docs, ok := RequiredDocumentsByOrg[organization]
	if !ok {
		return nil
	}
	out := make([]string, len(docs))
	copy(out, docs)
	return out
}
