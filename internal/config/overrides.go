package config

import (
	"flag"
	"strconv"
)

// ApplyFlags overrides file values with the flags that were set explicitly
// on fs. Flags are matched by name to the JSON keys they override.
func (c *Config) ApplyFlags(fs *flag.FlagSet) error {
	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		v := f.Value.String()
		switch f.Name {
		case "device":
			c.Device = ptrString(v)
		case "gpsd":
			c.GPSD = ptrString(v)
		case "nmea-port":
			c.NMEAPort = ptrString(v)
		case "db":
			c.DBPath = ptrString(v)
		case "out":
			c.OutDir = ptrString(v)
		case "format":
			c.Format = ptrString(v)
		case "wait-timeout":
			c.WaitTimeout = ptrString(v)
		case "idle":
			c.Idle = ptrString(v)
		case "dev-interval":
			c.DevInterval = ptrString(v)
		case "width", "height", "buffers", "dev-frames":
			var n int
			if n, err = strconv.Atoi(v); err != nil {
				return
			}
			switch f.Name {
			case "width":
				c.Width = ptrInt(n)
			case "height":
				c.Height = ptrInt(n)
			case "buffers":
				c.Buffers = ptrInt(n)
			default:
				c.DevFrames = ptrInt(n)
			}
		case "gray", "dev":
			var b bool
			if b, err = strconv.ParseBool(v); err != nil {
				return
			}
			if f.Name == "gray" {
				c.Gray = ptrBool(b)
			} else {
				c.Dev = ptrBool(b)
			}
		}
	})
	if err != nil {
		return err
	}
	return c.Validate()
}
