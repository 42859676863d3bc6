package catalog

import (
	"ontologycore/internal/lookup"
	"ontologycore/internal/spec"
	"ontologycore/pkg/domain"
)

// JoinSamples names the measurement to sample link relation.
const JoinSamples = "samples"

// Fields of the measurements table and its sample link.
var (
	MeasurementID              = spec.IntegerField("id", "m.id")
	MeasurementCode            = spec.TextField("measurementCode", "m.measurement_code")
	MeasurementName            = spec.TextField("measurementName", "m.measurement_name")
	MeasurementFacility        = spec.TextField("facility", "m.facility")
	MeasurementComment         = spec.TextField("comment", "m.comment")
	MeasurementInjectionVolume = spec.IntegerField("injectionVolume", "m.injection_volume")
	MeasurementRegisteredAt    = spec.TimestampField("registeredAt", "m.registered_at")
	MeasurementDevice          = spec.JSONField("msDevice", "m.ms_device")
	MeasurementOrganisation    = spec.JSONField("organisation", "m.organisation")
	MeasurementSample          = spec.TextField("sample", "ms.sample_id").Via(JoinSamples)
)

// MeasurementEntity matches measurements linked to any visible sample whose
// attributes contain the search text. The sample join can repeat a
// measurement, so the predicate is distinct.
func MeasurementEntity() lookup.Entity[domain.Measurement] {
	return lookup.Entity[domain.Measurement]{
		Type: domain.EntityMeasurement,
		Key:  MeasurementID,
		SortKeys: map[string]spec.Field{
			"measurementCode": MeasurementCode,
			"measurementName": MeasurementName,
			"facility":        MeasurementFacility,
			"registeredAt":    MeasurementRegisteredAt,
			"injectionVolume": MeasurementInjectionVolume,
		},
		Predicate:    MeasurementPredicate,
		DefaultOrder: []lookup.Order{{Field: MeasurementRegisteredAt, Descending: true}},
	}
}

// MeasurementPredicate composes the scoped measurement search for f.
func MeasurementPredicate(f domain.Filter) spec.Predicate {
	term := f.Term()
	return spec.Distinct(spec.And(
		spec.In(MeasurementSample, f.EffectiveScope()...),
		spec.AnyOf(
			spec.Contains(MeasurementCode, term),
			spec.Contains(MeasurementName, term),
			spec.Contains(MeasurementFacility, term),
			spec.Contains(MeasurementComment, term),
			spec.Contains(MeasurementInjectionVolume, term),
			spec.FormattedClientTimeContains(MeasurementRegisteredAt, term, f.ClientOffsetMillis(), f.TimePattern()),
			spec.JSONPathContains(MeasurementDevice, "$.label", term),
			spec.JSONPathContains(MeasurementDevice, "$.oboId", term),
			spec.JSONPathContains(MeasurementOrganisation, "$.label", term),
			spec.JSONPathContains(MeasurementOrganisation, "$.IRI", term),
		),
	))
}

// MeasurementValues exposes a measurement and its linked samples to the
// in-memory evaluator.
func MeasurementValues(m domain.Measurement, sampleIDs []string) spec.Values {
	return spec.Values{
		MeasurementID.Name:              m.ID,
		MeasurementCode.Name:            m.Code,
		MeasurementName.Name:            m.Name,
		MeasurementFacility.Name:        m.Facility,
		MeasurementComment.Name:         m.Comment,
		MeasurementInjectionVolume.Name: m.InjectionVolume,
		MeasurementRegisteredAt.Name:    m.RegisteredAt,
		MeasurementDevice.Name:          m.Device,
		MeasurementOrganisation.Name:    m.Organisation,
		MeasurementSample.Name:          sampleIDs,
	}
}
