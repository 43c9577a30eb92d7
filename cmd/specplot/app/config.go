package app

import (
	"errors"
	"flag"
)

type Config struct {
	DBPath        string
	MeasurementID int64
	CompanyID     string
	InputFile     string
	OutputFile    string
	FontPath      string
	Width         int
	Height        int
	Verbose       bool
}

func NewConfigFromCLI() (*Config, error) {
	var c Config

	flag.StringVar(&c.DBPath, "db", "", "Path to the measurement database")
	flag.Int64Var(&c.MeasurementID, "id", 0, "Measurement ID to plot")
	flag.StringVar(&c.CompanyID, "company", "", "Company the measurement belongs to")
	flag.StringVar(&c.InputFile, "in", "", "Raw spectrum CSV to analyze and plot instead of a stored measurement")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the output PNG file")
	flag.StringVar(&c.FontPath, "font", "", "TTF font for axis labels (optional)")
	flag.IntVar(&c.Width, "width", 0, "Plot area width in pixels")
	flag.IntVar(&c.Height, "height", 0, "Plot area height in pixels")
	flag.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	flag.Parse()

	var err error
	switch {
	case c.OutputFile == "":
		err = errors.New("output file is required")
	case c.InputFile == "" && c.DBPath == "":
		err = errors.New("either an input CSV or a database path is required")
	case c.InputFile == "" && c.MeasurementID <= 0:
		err = errors.New("measurement id is required")
	case c.InputFile == "" && c.CompanyID == "":
		err = errors.New("company is required")
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}
	return &c, nil
}
