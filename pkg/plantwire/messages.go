package plantwire

import (
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// SensorReading is one measurement published by a plant sensor.
//
//	message SensorReading {
//	  string plant_id = 1;
//	  int64 observed_at_ms = 2;
//	  optional double soil_moisture = 3;
//	  optional double luminosity = 4;
//	  optional double humidity = 5;
//	  optional double temperature = 6;
//	  string sensor_id = 7;
//	}
type SensorReading struct {
	PlantID      string
	ObservedAt   time.Time
	SoilMoisture *float64
	Luminosity   *float64
	Humidity     *float64
	Temperature  *float64
	SensorID     string
}

// Marshal encodes r. The plant id is mandatory.
func (r *SensorReading) Marshal() ([]byte, error) {
	if r.PlantID == "" {
		return nil, ErrMissingPlantID
	}
	var b []byte
	b = AppendString(b, 1, r.PlantID)
	b = AppendInt64(b, 2, UnixMillis(r.ObservedAt))
	b = AppendOptionalDouble(b, 3, r.SoilMoisture)
	b = AppendOptionalDouble(b, 4, r.Luminosity)
	b = AppendOptionalDouble(b, 5, r.Humidity)
	b = AppendOptionalDouble(b, 6, r.Temperature)
	b = AppendString(b, 7, r.SensorID)
	return b, nil
}

// Unmarshal decodes b into r, replacing its contents.
func (r *SensorReading) Unmarshal(b []byte) error {
	*r = SensorReading{}
	err := DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		var (
			n   int
			err error
		)
		switch num {
		case 1:
			r.PlantID, n, err = ConsumeString(typ, b)
		case 2:
			var ms int64
			ms, n, err = ConsumeInt64(typ, b)
			r.ObservedAt = FromUnixMillis(ms)
		case 3:
			r.SoilMoisture, n, err = ConsumeDouble(typ, b)
		case 4:
			r.Luminosity, n, err = ConsumeDouble(typ, b)
		case 5:
			r.Humidity, n, err = ConsumeDouble(typ, b)
		case 6:
			r.Temperature, n, err = ConsumeDouble(typ, b)
		case 7:
			r.SensorID, n, err = ConsumeString(typ, b)
		default:
			return 0, false, nil
		}
		return n, true, err
	})
	if err != nil {
		return err
	}
	if r.PlantID == "" {
		return ErrMissingPlantID
	}
	return nil
}

// PlantRegistration announces a plant and its descriptive metadata.
//
//	message PlantRegistration {
//	  string plant_id = 1;
//	  string name = 2;
//	  string common_name = 3;
//	  string latin_name = 4;
//	  string description = 5;
//	  string image = 6;
//	  int64 registered_at_ms = 7;
//	}
type PlantRegistration struct {
	PlantID      string
	Name         string
	CommonName   string
	LatinName    string
	Description  string
	Image        string
	RegisteredAt time.Time
}

// Marshal encodes p. The plant id is mandatory.
func (p *PlantRegistration) Marshal() ([]byte, error) {
	if p.PlantID == "" {
		return nil, ErrMissingPlantID
	}
	var b []byte
	b = AppendString(b, 1, p.PlantID)
	b = AppendString(b, 2, p.Name)
	b = AppendString(b, 3, p.CommonName)
	b = AppendString(b, 4, p.LatinName)
	b = AppendString(b, 5, p.Description)
	b = AppendString(b, 6, p.Image)
	b = AppendInt64(b, 7, UnixMillis(p.RegisteredAt))
	return b, nil
}

// Unmarshal decodes b into p, replacing its contents.
func (p *PlantRegistration) Unmarshal(b []byte) error {
	*p = PlantRegistration{}
	err := DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		var (
			n   int
			err error
		)
		switch num {
		case 1:
			p.PlantID, n, err = ConsumeString(typ, b)
		case 2:
			p.Name, n, err = ConsumeString(typ, b)
		case 3:
			p.CommonName, n, err = ConsumeString(typ, b)
		case 4:
			p.LatinName, n, err = ConsumeString(typ, b)
		case 5:
			p.Description, n, err = ConsumeString(typ, b)
		case 6:
			p.Image, n, err = ConsumeString(typ, b)
		case 7:
			var ms int64
			ms, n, err = ConsumeInt64(typ, b)
			p.RegisteredAt = FromUnixMillis(ms)
		default:
			return 0, false, nil
		}
		return n, true, err
	})
	if err != nil {
		return err
	}
	if p.PlantID == "" {
		return ErrMissingPlantID
	}
	return nil
}

// WateringCommand asks a pump controller to water a plant.
//
//	message WateringCommand {
//	  string command_id = 1;
//	  string plant_id = 2;
//	  optional int64 quantity_ml = 3;
//	  int64 issued_at_ms = 4;
//	  string reason = 5;
//	}
type WateringCommand struct {
	CommandID  string
	PlantID    string
	QuantityML *int64
	IssuedAt   time.Time
	Reason     string
}

// Marshal encodes c. The plant id is mandatory.
func (c *WateringCommand) Marshal() ([]byte, error) {
	if c.PlantID == "" {
		return nil, ErrMissingPlantID
	}
	var b []byte
	b = AppendString(b, 1, c.CommandID)
	b = AppendString(b, 2, c.PlantID)
	b = AppendOptionalInt64(b, 3, c.QuantityML)
	b = AppendInt64(b, 4, UnixMillis(c.IssuedAt))
	b = AppendString(b, 5, c.Reason)
	return b, nil
}

// Unmarshal decodes b into c, replacing its contents.
func (c *WateringCommand) Unmarshal(b []byte) error {
	*c = WateringCommand{}
	err := DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		var (
			n   int
			err error
		)
		switch num {
		case 1:
			c.CommandID, n, err = ConsumeString(typ, b)
		case 2:
			c.PlantID, n, err = ConsumeString(typ, b)
		case 3:
			var v int64
			v, n, err = ConsumeInt64(typ, b)
			if err == nil {
				c.QuantityML = &v
			}
		case 4:
			var ms int64
			ms, n, err = ConsumeInt64(typ, b)
			c.IssuedAt = FromUnixMillis(ms)
		case 5:
			c.Reason, n, err = ConsumeString(typ, b)
		default:
			return 0, false, nil
		}
		return n, true, err
	})
	if err != nil {
		return err
	}
	if c.PlantID == "" {
		return ErrMissingPlantID
	}
	return nil
}
