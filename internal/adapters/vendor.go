package adapters

import "github.com/theirongolddev/planhaus/internal/model"

// FunnelStage is one stage of the vendor booking funnel.
type FunnelStage struct {
	Stage      model.VendorStatus `json:"stage"`
	Label      string             `json:"label"`
	Count      int                `json:"count"`
	Percentage float64            `json:"percentage"`
}

// Funnel is the vendor pipeline chart.
type Funnel struct {
	Stages    []FunnelStage `json:"stages"`
	Cancelled int           `json:"cancelled"`
	Unknown   int           `json:"unknown"`
	Total     int           `json:"total"`
}

var stageLabels = map[model.VendorStatus]string{
	model.VendorResearching:   "Researching",
	model.VendorContacted:     "Contacted",
	model.VendorQuoteReceived: "Quote Received",
	model.VendorContractSent:  "Contract Sent",
	model.VendorBooked:        "Booked",
}

// ToFunnel counts vendors per stage in pipeline order. Percentages are of
// all vendors, cancelled included.
func ToFunnel(vendors []model.Vendor) Funnel {
	counts := make(map[model.VendorStatus]int, len(model.VendorPipeline))
	f := Funnel{Total: len(vendors)}
	for _, v := range vendors {
		st, ok := model.ParseVendorStatus(string(v.Status))
		switch {
		case !ok:
			f.Unknown++
		case st == model.VendorCancelled:
			f.Cancelled++
		default:
			counts[st]++
		}
	}

	f.Stages = make([]FunnelStage, 0, len(model.VendorPipeline))
	for _, st := range model.VendorPipeline {
		f.Stages = append(f.Stages, FunnelStage{
			Stage:      st,
			Label:      stageLabels[st],
			Count:      counts[st],
			Percentage: percent(counts[st], f.Total),
		})
	}
	return f
}
