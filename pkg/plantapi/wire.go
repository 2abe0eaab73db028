package plantapi

import (
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/SimonCaignart/plant-e/pkg/plantwire"
)

// Wire layout of the PlantService messages. Times are microseconds since
// the Unix epoch.
//
//	message Policy {
//	  optional int64 watering_frequency = 1;
//	  optional int64 water_quantity = 2;
//	  optional double soil_moisture_threshold = 3;
//	  optional double humidity_threshold = 4;
//	  optional double temperature_threshold = 5;
//	  optional double luminosity_threshold = 6;
//	}
//	message Reading {
//	  optional double soil_moisture = 1;
//	  optional double luminosity = 2;
//	  optional double humidity = 3;
//	  optional double temperature = 4;
//	}
//	message Plant {
//	  string id = 1; string name = 2; string common_name = 3;
//	  string latin_name = 4; string description = 5; string image = 6;
//	  bool automatic_watering = 7; Policy policy = 8; Reading latest = 9;
//	  optional int64 latest_at_us = 10; optional int64 last_watered_us = 11;
//	  bool pump_connected = 12; int64 created_at_us = 13; int64 updated_at_us = 14;
//	}
//	message PlantLog {
//	  string id = 1; string plant_id = 2; int64 created_at_us = 3;
//	  Reading reading = 4; bool was_watered = 5;
//	}
//
// Requests carry plant_id as field 1; the remaining fields follow their
// order in the Go structs.
type wireMessage interface {
	MarshalWire() ([]byte, error)
	UnmarshalWire(b []byte) error
}

func optionalInt(v *int) *int64 {
	if v == nil {
		return nil
	}
	n := int64(*v)
	return &n
}

func consumeOptionalInt(typ protowire.Type, b []byte) (*int, int, error) {
	v, n, err := plantwire.ConsumeInt64(typ, b)
	if err != nil {
		return nil, 0, err
	}
	i := int(v)
	return &i, n, nil
}

func consumeOptionalTime(typ protowire.Type, b []byte) (*time.Time, int, error) {
	t, n, err := plantwire.ConsumeTime(typ, b)
	if err != nil {
		return nil, 0, err
	}
	return &t, n, nil
}

// appendMessage embeds m, or nothing when m is nil.
func appendMessage[M interface {
	*T
	wireMessage
}, T any](b []byte, num protowire.Number, m M) ([]byte, error) {
	if m == nil {
		return b, nil
	}
	enc, err := m.MarshalWire()
	if err != nil {
		return nil, err
	}
	if enc == nil {
		enc = []byte{}
	}
	return plantwire.AppendMessage(b, num, enc), nil
}

// consumeMessage decodes an embedded message into a new T.
func consumeMessage[M interface {
	*T
	wireMessage
}, T any](typ protowire.Type, b []byte) (M, int, error) {
	raw, n, err := plantwire.ConsumeBytes(typ, b)
	if err != nil {
		return nil, 0, err
	}
	m := M(new(T))
	if err := m.UnmarshalWire(raw); err != nil {
		return nil, 0, err
	}
	return m, n, nil
}

// decodePlantID decodes a request whose only field is the plant id.
func decodePlantID(b []byte, id *string) error {
	return plantwire.DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		if num != 1 {
			return 0, false, nil
		}
		var (
			n   int
			err error
		)
		*id, n, err = plantwire.ConsumeString(typ, b)
		return n, true, err
	})
}

func (p *Policy) MarshalWire() ([]byte, error) {
	var b []byte
	b = plantwire.AppendOptionalInt64(b, 1, optionalInt(p.WateringFrequency))
	b = plantwire.AppendOptionalInt64(b, 2, optionalInt(p.WaterQuantity))
	b = plantwire.AppendOptionalDouble(b, 3, p.SoilMoistureThreshold)
	b = plantwire.AppendOptionalDouble(b, 4, p.HumidityThreshold)
	b = plantwire.AppendOptionalDouble(b, 5, p.TemperatureThreshold)
	b = plantwire.AppendOptionalDouble(b, 6, p.LuminosityThreshold)
	return b, nil
}

func (p *Policy) UnmarshalWire(b []byte) error {
	*p = Policy{}
	return plantwire.DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		var (
			n   int
			err error
		)
		switch num {
		case 1:
			p.WateringFrequency, n, err = consumeOptionalInt(typ, b)
		case 2:
			p.WaterQuantity, n, err = consumeOptionalInt(typ, b)
		case 3:
			p.SoilMoistureThreshold, n, err = plantwire.ConsumeDouble(typ, b)
		case 4:
			p.HumidityThreshold, n, err = plantwire.ConsumeDouble(typ, b)
		case 5:
			p.TemperatureThreshold, n, err = plantwire.ConsumeDouble(typ, b)
		case 6:
			p.LuminosityThreshold, n, err = plantwire.ConsumeDouble(typ, b)
		default:
			return 0, false, nil
		}
		return n, true, err
	})
}

func (r *Reading) MarshalWire() ([]byte, error) {
	var b []byte
	b = plantwire.AppendOptionalDouble(b, 1, r.SoilMoisture)
	b = plantwire.AppendOptionalDouble(b, 2, r.Luminosity)
	b = plantwire.AppendOptionalDouble(b, 3, r.Humidity)
	b = plantwire.AppendOptionalDouble(b, 4, r.Temperature)
	return b, nil
}

func (r *Reading) UnmarshalWire(b []byte) error {
	*r = Reading{}
	return plantwire.DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		var (
			n   int
			err error
		)
		switch num {
		case 1:
			r.SoilMoisture, n, err = plantwire.ConsumeDouble(typ, b)
		case 2:
			r.Luminosity, n, err = plantwire.ConsumeDouble(typ, b)
		case 3:
			r.Humidity, n, err = plantwire.ConsumeDouble(typ, b)
		case 4:
			r.Temperature, n, err = plantwire.ConsumeDouble(typ, b)
		default:
			return 0, false, nil
		}
		return n, true, err
	})
}

func (p *Plant) MarshalWire() ([]byte, error) {
	var b []byte
	b = plantwire.AppendString(b, 1, p.ID)
	b = plantwire.AppendString(b, 2, p.Name)
	b = plantwire.AppendString(b, 3, p.CommonName)
	b = plantwire.AppendString(b, 4, p.LatinName)
	b = plantwire.AppendString(b, 5, p.Description)
	b = plantwire.AppendString(b, 6, p.Image)
	b = plantwire.AppendBool(b, 7, p.AutomaticWatering)

	b, err := appendMessage(b, 8, &p.Policy)
	if err != nil {
		return nil, err
	}
	if b, err = appendMessage(b, 9, p.Latest); err != nil {
		return nil, err
	}

	b = plantwire.AppendOptionalTime(b, 10, p.LatestAt)
	b = plantwire.AppendOptionalTime(b, 11, p.LastWatered)
	b = plantwire.AppendBool(b, 12, p.PumpConnected)
	b = plantwire.AppendTime(b, 13, p.CreatedAt)
	b = plantwire.AppendTime(b, 14, p.UpdatedAt)
	return b, nil
}

func (p *Plant) UnmarshalWire(b []byte) error {
	*p = Plant{}
	return plantwire.DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		var (
			n   int
			err error
		)
		switch num {
		case 1:
			p.ID, n, err = plantwire.ConsumeString(typ, b)
		case 2:
			p.Name, n, err = plantwire.ConsumeString(typ, b)
		case 3:
			p.CommonName, n, err = plantwire.ConsumeString(typ, b)
		case 4:
			p.LatinName, n, err = plantwire.ConsumeString(typ, b)
		case 5:
			p.Description, n, err = plantwire.ConsumeString(typ, b)
		case 6:
			p.Image, n, err = plantwire.ConsumeString(typ, b)
		case 7:
			p.AutomaticWatering, n, err = plantwire.ConsumeBool(typ, b)
		case 8:
			var policy *Policy
			policy, n, err = consumeMessage[*Policy](typ, b)
			if err == nil {
				p.Policy = *policy
			}
		case 9:
			p.Latest, n, err = consumeMessage[*Reading](typ, b)
		case 10:
			p.LatestAt, n, err = consumeOptionalTime(typ, b)
		case 11:
			p.LastWatered, n, err = consumeOptionalTime(typ, b)
		case 12:
			p.PumpConnected, n, err = plantwire.ConsumeBool(typ, b)
		case 13:
			p.CreatedAt, n, err = plantwire.ConsumeTime(typ, b)
		case 14:
			p.UpdatedAt, n, err = plantwire.ConsumeTime(typ, b)
		default:
			return 0, false, nil
		}
		return n, true, err
	})
}

func (l *PlantLog) MarshalWire() ([]byte, error) {
	var b []byte
	b = plantwire.AppendString(b, 1, l.ID)
	b = plantwire.AppendString(b, 2, l.PlantID)
	b = plantwire.AppendTime(b, 3, l.CreatedAt)
	b, err := appendMessage(b, 4, &l.Reading)
	if err != nil {
		return nil, err
	}
	b = plantwire.AppendBool(b, 5, l.WasWatered)
	return b, nil
}

func (l *PlantLog) UnmarshalWire(b []byte) error {
	*l = PlantLog{}
	return plantwire.DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		var (
			n   int
			err error
		)
		switch num {
		case 1:
			l.ID, n, err = plantwire.ConsumeString(typ, b)
		case 2:
			l.PlantID, n, err = plantwire.ConsumeString(typ, b)
		case 3:
			l.CreatedAt, n, err = plantwire.ConsumeTime(typ, b)
		case 4:
			var r *Reading
			r, n, err = consumeMessage[*Reading](typ, b)
			if err == nil {
				l.Reading = *r
			}
		case 5:
			l.WasWatered, n, err = plantwire.ConsumeBool(typ, b)
		default:
			return 0, false, nil
		}
		return n, true, err
	})
}

// marshalPlant encodes the responses that carry a single plant as field 1.
func marshalPlant(p *Plant) ([]byte, error) {
	return appendMessage(nil, 1, p)
}

func unmarshalPlant(b []byte, p **Plant) error {
	*p = nil
	return plantwire.DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		if num != 1 {
			return 0, false, nil
		}
		var (
			n   int
			err error
		)
		*p, n, err = consumeMessage[*Plant](typ, b)
		return n, true, err
	})
}

func (r *ListPlantsRequest) MarshalWire() ([]byte, error) {
	return plantwire.AppendBool(nil, 1, r.AutomaticOnly), nil
}

func (r *ListPlantsRequest) UnmarshalWire(b []byte) error {
	*r = ListPlantsRequest{}
	return plantwire.DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		if num != 1 {
			return 0, false, nil
		}
		var (
			n   int
			err error
		)
		r.AutomaticOnly, n, err = plantwire.ConsumeBool(typ, b)
		return n, true, err
	})
}

func (r *ListPlantsResponse) MarshalWire() ([]byte, error) {
	var (
		b   []byte
		err error
	)
	for _, p := range r.Plants {
		if b, err = appendMessage(b, 1, p); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (r *ListPlantsResponse) UnmarshalWire(b []byte) error {
	*r = ListPlantsResponse{}
	return plantwire.DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		if num != 1 {
			return 0, false, nil
		}
		p, n, err := consumeMessage[*Plant](typ, b)
		if err == nil {
			r.Plants = append(r.Plants, p)
		}
		return n, true, err
	})
}

func (r *GetPlantRequest) MarshalWire() ([]byte, error) {
	return plantwire.AppendString(nil, 1, r.PlantID), nil
}

func (r *GetPlantRequest) UnmarshalWire(b []byte) error {
	*r = GetPlantRequest{}
	return decodePlantID(b, &r.PlantID)
}

func (r *GetPlantResponse) MarshalWire() ([]byte, error) { return marshalPlant(r.Plant) }

func (r *GetPlantResponse) UnmarshalWire(b []byte) error { return unmarshalPlant(b, &r.Plant) }

func (r *GetPlantLogsRequest) MarshalWire() ([]byte, error) {
	var b []byte
	b = plantwire.AppendString(b, 1, r.PlantID)
	b = plantwire.AppendInt64(b, 2, int64(r.PageSize))
	b = plantwire.AppendString(b, 3, r.PageToken)
	return b, nil
}

func (r *GetPlantLogsRequest) UnmarshalWire(b []byte) error {
	*r = GetPlantLogsRequest{}
	return plantwire.DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		var (
			n   int
			err error
		)
		switch num {
		case 1:
			r.PlantID, n, err = plantwire.ConsumeString(typ, b)
		case 2:
			var size int64
			size, n, err = plantwire.ConsumeInt64(typ, b)
			r.PageSize = int32(size)
		case 3:
			r.PageToken, n, err = plantwire.ConsumeString(typ, b)
		default:
			return 0, false, nil
		}
		return n, true, err
	})
}

func (r *GetPlantLogsResponse) MarshalWire() ([]byte, error) {
	var (
		b   []byte
		err error
	)
	for _, l := range r.Logs {
		if b, err = appendMessage(b, 1, l); err != nil {
			return nil, err
		}
	}
	b = plantwire.AppendString(b, 2, r.NextPageToken)
	return b, nil
}

func (r *GetPlantLogsResponse) UnmarshalWire(b []byte) error {
	*r = GetPlantLogsResponse{}
	return plantwire.DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		var (
			n   int
			err error
		)
		switch num {
		case 1:
			var l *PlantLog
			l, n, err = consumeMessage[*PlantLog](typ, b)
			if err == nil {
				r.Logs = append(r.Logs, l)
			}
		case 2:
			r.NextPageToken, n, err = plantwire.ConsumeString(typ, b)
		default:
			return 0, false, nil
		}
		return n, true, err
	})
}

func (r *UpdatePolicyRequest) MarshalWire() ([]byte, error) {
	var b []byte
	b = plantwire.AppendString(b, 1, r.PlantID)
	b = plantwire.AppendOptionalInt64(b, 2, optionalInt(r.WateringFrequency))
	b = plantwire.AppendOptionalInt64(b, 3, optionalInt(r.WaterQuantity))
	b = plantwire.AppendOptionalDouble(b, 4, r.SoilMoistureThreshold)
	b = plantwire.AppendOptionalDouble(b, 5, r.HumidityThreshold)
	b = plantwire.AppendOptionalDouble(b, 6, r.TemperatureThreshold)
	b = plantwire.AppendOptionalDouble(b, 7, r.LuminosityThreshold)
	b = plantwire.AppendBool(b, 8, r.ClearWateringFrequency)
	b = plantwire.AppendBool(b, 9, r.ClearWaterQuantity)
	return b, nil
}

func (r *UpdatePolicyRequest) UnmarshalWire(b []byte) error {
	*r = UpdatePolicyRequest{}
	return plantwire.DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		var (
			n   int
			err error
		)
		switch num {
		case 1:
			r.PlantID, n, err = plantwire.ConsumeString(typ, b)
		case 2:
			r.WateringFrequency, n, err = consumeOptionalInt(typ, b)
		case 3:
			r.WaterQuantity, n, err = consumeOptionalInt(typ, b)
		case 4:
			r.SoilMoistureThreshold, n, err = plantwire.ConsumeDouble(typ, b)
		case 5:
			r.HumidityThreshold, n, err = plantwire.ConsumeDouble(typ, b)
		case 6:
			r.TemperatureThreshold, n, err = plantwire.ConsumeDouble(typ, b)
		case 7:
			r.LuminosityThreshold, n, err = plantwire.ConsumeDouble(typ, b)
		case 8:
			r.ClearWateringFrequency, n, err = plantwire.ConsumeBool(typ, b)
		case 9:
			r.ClearWaterQuantity, n, err = plantwire.ConsumeBool(typ, b)
		default:
			return 0, false, nil
		}
		return n, true, err
	})
}

func (r *UpdatePolicyResponse) MarshalWire() ([]byte, error) { return marshalPlant(r.Plant) }

func (r *UpdatePolicyResponse) UnmarshalWire(b []byte) error { return unmarshalPlant(b, &r.Plant) }

func (r *SetAutomaticWateringRequest) MarshalWire() ([]byte, error) {
	var b []byte
	b = plantwire.AppendString(b, 1, r.PlantID)
	b = plantwire.AppendBool(b, 2, r.Enabled)
	return b, nil
}

func (r *SetAutomaticWateringRequest) UnmarshalWire(b []byte) error {
	*r = SetAutomaticWateringRequest{}
	return plantwire.DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		var (
			n   int
			err error
		)
		switch num {
		case 1:
			r.PlantID, n, err = plantwire.ConsumeString(typ, b)
		case 2:
			r.Enabled, n, err = plantwire.ConsumeBool(typ, b)
		default:
			return 0, false, nil
		}
		return n, true, err
	})
}

func (r *SetAutomaticWateringResponse) MarshalWire() ([]byte, error) { return marshalPlant(r.Plant) }

func (r *SetAutomaticWateringResponse) UnmarshalWire(b []byte) error {
	return unmarshalPlant(b, &r.Plant)
}

func (r *WaterPlantRequest) MarshalWire() ([]byte, error) {
	return plantwire.AppendString(nil, 1, r.PlantID), nil
}

func (r *WaterPlantRequest) UnmarshalWire(b []byte) error {
	*r = WaterPlantRequest{}
	return decodePlantID(b, &r.PlantID)
}

func (r *WaterPlantResponse) MarshalWire() ([]byte, error) {
	return plantwire.AppendString(nil, 1, r.LogID), nil
}

func (r *WaterPlantResponse) UnmarshalWire(b []byte) error {
	*r = WaterPlantResponse{}
	return decodePlantID(b, &r.LogID)
}

func (r *DeletePlantRequest) MarshalWire() ([]byte, error) {
	return plantwire.AppendString(nil, 1, r.PlantID), nil
}

func (r *DeletePlantRequest) UnmarshalWire(b []byte) error {
	*r = DeletePlantRequest{}
	return decodePlantID(b, &r.PlantID)
}

func (r *DeletePlantResponse) MarshalWire() ([]byte, error) { return nil, nil }

func (r *DeletePlantResponse) UnmarshalWire(b []byte) error {
	return plantwire.DecodeFields(b, func(protowire.Number, protowire.Type, []byte) (int, bool, error) {
		return 0, false, nil
	})
}

func (r *EvaluatePlantRequest) MarshalWire() ([]byte, error) {
	var b []byte
	b = plantwire.AppendString(b, 1, r.PlantID)
	b = plantwire.AppendBool(b, 2, r.Apply)
	return b, nil
}

func (r *EvaluatePlantRequest) UnmarshalWire(b []byte) error {
	*r = EvaluatePlantRequest{}
	return plantwire.DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		var (
			n   int
			err error
		)
		switch num {
		case 1:
			r.PlantID, n, err = plantwire.ConsumeString(typ, b)
		case 2:
			r.Apply, n, err = plantwire.ConsumeBool(typ, b)
		default:
			return 0, false, nil
		}
		return n, true, err
	})
}

func (r *EvaluatePlantResponse) MarshalWire() ([]byte, error) {
	var b []byte
	b = plantwire.AppendString(b, 1, r.Decision)
	b = plantwire.AppendRepeatedString(b, 2, r.Rules)
	b = plantwire.AppendBool(b, 3, r.Watered)
	b = plantwire.AppendString(b, 4, r.LogID)
	return b, nil
}

func (r *EvaluatePlantResponse) UnmarshalWire(b []byte) error {
	*r = EvaluatePlantResponse{}
	return plantwire.DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		var (
			n   int
			err error
		)
		switch num {
		case 1:
			r.Decision, n, err = plantwire.ConsumeString(typ, b)
		case 2:
			var rule string
			rule, n, err = plantwire.ConsumeString(typ, b)
			r.Rules = append(r.Rules, rule)
		case 3:
			r.Watered, n, err = plantwire.ConsumeBool(typ, b)
		case 4:
			r.LogID, n, err = plantwire.ConsumeString(typ, b)
		default:
			return 0, false, nil
		}
		return n, true, err
	})
}
