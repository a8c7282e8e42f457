package prompt

import (
	"strings"

	"caseforge/internal/axes"
)

// AxisGuide documents one axis of an issued instruction: what was
// selected, what the axis controls, and every value it could have taken.
type AxisGuide struct {
	SelectedValue  string            `json:"selected_value"`
	SelectedLabel  string            `json:"selected_label,omitempty"`
	Purpose        string            `json:"purpose"`
	SelectedEffect string            `json:"selected_effect"`
	AllowedValues  map[string]string `json:"allowed_values"`
	OnlyActiveWhen string            `json:"only_active_when,omitempty"`
}

const hardNegativeOnly = "complexity = hard_negative"

// DimensionGuide builds the per-axis audit block embedded in persisted
// instructions.
func DimensionGuide(profile axes.Profile) map[string]AxisGuide {
	shares := axes.DefaultShares()
	guide := make(map[string]AxisGuide, len(axes.DrawOrder))

	for _, axis := range axes.DrawOrder {
		bucket := profile.Bucket(axis)
		entry := AxisGuide{
			SelectedValue: bucket,
			Purpose:       axes.Purpose(axis),
			AllowedValues: allowedValues(axis, shares[axis]),
		}
		if bucket != "" {
			entry.SelectedLabel = axes.Label(axis, bucket)
		}
		entry.SelectedEffect = selectedEffect(axis, bucket)
		if axis == axes.AxisHardNegativeMode || axis == axes.AxisHardNegativeIntensity {
			entry.OnlyActiveWhen = hardNegativeOnly
		}
		guide[string(axis)] = entry
	}
	return guide
}

func allowedValues(axis axes.Axis, table axes.ShareTable) map[string]string {
	values := make(map[string]string, len(table.Buckets))
	for _, bucket := range table.Buckets {
		values[bucket] = axes.Label(axis, bucket)
	}
	return values
}

func selectedEffect(axis axes.Axis, bucket string) string {
	switch axis {
	case axes.AxisPrimaryTopic:
		if template, ok := axes.TopicTemplates[bucket]; ok {
			return "Cette consigne impose : " + strings.Join(template.Elements, " ; ")
		}
	case axes.AxisSecondaryTopic:
		if bucket == "" {
			return "Aucune couche secondaire n'est imposée sur cette consigne."
		}
		if template, ok := axes.TopicTemplates[bucket]; ok {
			return "Cette couche ajoute une contrainte supplémentaire : " + strings.Join(template.Elements, " ; ")
		}
	case axes.AxisHardNegativeMode, axes.AxisHardNegativeIntensity:
		if bucket == "" {
			return "Inactif ici, car la complexité tirée n'est pas un hard negative."
		}
		return axes.Detail(axis, bucket)
	default:
		return axes.Detail(axis, bucket)
	}
	return axes.Detail(axis, bucket)
}
