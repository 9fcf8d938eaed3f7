package model

// MedicineEntry is a medicine a user keeps in a compartment. The enrichment
// fields are copied from the pharmacy catalog.
type MedicineEntry struct {
	MedicineName      Text           `json:"medicineName,omitempty"`
	Drugstore         Text           `json:"drugstore,omitempty"`
	Description       any            `json:"description,omitempty"`
	FrequencyOfTaking any            `json:"frequencyOfTaking,omitempty"`
	ID                any            `json:"id,omitempty"`
	MedicineImage     any            `json:"medicineImage,omitempty"`
	MedicineMoreInfo  any            `json:"medicineMoreInfo,omitempty"`
	Price             any            `json:"price,omitempty"`
	PharmacyDetails   any            `json:"pharmacyDetails,omitempty"`
}

// EnrichmentFields are the catalog fields copied onto a MedicineEntry.
var EnrichmentFields = []string{
	"description",
	"frequencyOfTaking",
	"id",
	"medicineImage",
	"medicineMoreInfo",
	"price",
}

// Compartment is one slot of a user's medicine box. Only the fields alerts
// read are decoded; the rest of the record may have any shape.
type Compartment struct {
	ID              Text                 `json:"id,omitempty"`
	MedicineBoxID   Text                 `json:"medicineBoxId,omitempty"`
	FillUpStatus    Text                 `json:"fillUpStatus,omitempty"`
	RunOutAlert     bool                 `json:"runOutAlert,omitempty"`
	MedicineDetails *CompartmentMedicine `json:"medicineDetails,omitempty"`
}

// CompartmentMedicine is the part of a compartment's medicine alerts show.
type CompartmentMedicine struct {
	MedicineName Text `json:"medicineName,omitempty"`
}

// Order is a medicine order placed by a user.
type Order struct {
	ID                   Text           `json:"id,omitempty"`
	UserName             Text           `json:"userName,omitempty"`
	MedicineDetails      MedicineEntry  `json:"medicineDetails"`
	TargetSinglePharmacy *bool          `json:"targetSinglePharmacy,omitempty"`
	Availability         *bool          `json:"availability,omitempty"`
	PharmacyDetails      any            `json:"pharmacyDetails,omitempty"`
}

// Targeted reports whether the user chose a single pharmacy.
func (o Order) Targeted() bool {
	return o.TargetSinglePharmacy != nil && *o.TargetSinglePharmacy
}

// PharmacyName names the pharmacy a targeted order is addressed to: the
// drugstore of its medicine, else the name in its pharmacy details.
func (o Order) PharmacyName() string {
	if name := o.MedicineDetails.Drugstore.String(); name != "" {
		return name
	}
	return o.detailsName()
}

// AcceptedBy names the pharmacy that accepted a broadcast order: the name in
// its pharmacy details, else the drugstore of its medicine.
func (o Order) AcceptedBy() string {
	if name := o.detailsName(); name != "" {
		return name
	}
	return o.MedicineDetails.Drugstore.String()
}

func (o Order) detailsName() string {
	details, ok := o.PharmacyDetails.(map[string]any)
	if !ok {
		return ""
	}
	name, _ := details["name"].(string)
	return name
}
