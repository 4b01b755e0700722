package trafficlight

import "github.com/alecthomas/kong"

type CLI struct {
	Config  string           `help:"config file path or URL (file, http, https, s3)" short:"c" env:"TRAFFICLIGHT_CONFIG"`
	Debug   bool             `help:"debug mode" short:"d" default:"false"`
	Version kong.VersionFlag `help:"show version"`
}
