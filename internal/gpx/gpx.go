/**
 * GPX Track Exporter
 *
 * Converts reconciled telemetry records into a GPX 1.1 document with Garmin
 * extensions: one trkseg of trkpt elements plus a parallel set of wpt
 * elements carrying the source frame name. Records whose DMS coordinates do
 * not parse are skipped with a warning, never replaced with a guess.
 */

package gpx

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"

	"github.com/dashtrail/telemetry-worker/internal/logging"
	"github.com/dashtrail/telemetry-worker/internal/telemetry"
)

const (
	xmlnsGPX    = "http://www.topografix.com/GPX/1/1"
	xmlnsGpxx   = "http://www.garmin.com/xmlschemas/GpxExtensions/v3"
	xmlnsGpxtpx = "http://www.garmin.com/xmlschemas/TrackPointExtension/v1"

	// Statute miles per hour to meters per second.
	mphToMetersPerSecond = 0.44704
)

// ErrNoCoordinates is returned when no record yields a parseable position;
// no file is produced in that case.
var ErrNoCoordinates = errors.New("no records with parseable coordinates")

// Document is a GPX 1.1 file.
type Document struct {
	XMLName     xml.Name  `xml:"gpx"`
	Version     string    `xml:"version,attr"`
	Creator     string    `xml:"creator,attr"`
	Xmlns       string    `xml:"xmlns,attr"`
	XmlnsGpxx   string    `xml:"xmlns:gpxx,attr"`
	XmlnsGpxtpx string    `xml:"xmlns:gpxtpx,attr"`
	Metadata    Metadata  `xml:"metadata"`
	Waypoints   []Waypoint `xml:"wpt"`
	Track       Track     `xml:"trk"`
}

type Metadata struct {
	Name   string `xml:"name,omitempty"`
	Bounds Bounds `xml:"bounds"`
}

// Bounds is the bounding box over every accepted point.
type Bounds struct {
	MinLat string `xml:"minlat,attr"`
	MinLon string `xml:"minlon,attr"`
	MaxLat string `xml:"maxlat,attr"`
	MaxLon string `xml:"maxlon,attr"`
}

type Waypoint struct {
	Lat        string     `xml:"lat,attr"`
	Lon        string     `xml:"lon,attr"`
	Time       string     `xml:"time"`
	Name       string     `xml:"name"`
	Cmt        string     `xml:"cmt"`
	Desc       string     `xml:"desc"`
	Extensions Extensions `xml:"extensions"`
}

type Track struct {
	Name    string  `xml:"name"`
	Segment Segment `xml:"trkseg"`
}

type Segment struct {
	Points []Point `xml:"trkpt"`
}

type Point struct {
	Lat        string     `xml:"lat,attr"`
	Lon        string     `xml:"lon,attr"`
	Time       string     `xml:"time"`
	Extensions Extensions `xml:"extensions"`
}

type Extensions struct {
	TrackPointExtension TrackPointExtension `xml:"gpxtpx:TrackPointExtension"`
}

type TrackPointExtension struct {
	Speed string `xml:"gpxtpx:speed"`
}

// Exporter builds GPX documents from telemetry records.
type Exporter struct {
	logger *logging.Logger
}

func NewExporter(logger *logging.Logger) *Exporter {
	if logger == nil {
		logger = logging.NewLogger("gpx")
	}
	return &Exporter{logger: logger}
}

// Export converts records into a GPX document. Every record with a parseable
// coordinate pair contributes one track point and one waypoint; the bounding
// box covers all of them. Returns ErrNoCoordinates if nothing was usable.
func (e *Exporter) Export(records []telemetry.Record, name string) (*Document, error) {
	doc := &Document{
		Version:     "1.1",
		Creator:     "telemetry-worker",
		Xmlns:       xmlnsGPX,
		XmlnsGpxx:   xmlnsGpxx,
		XmlnsGpxtpx: xmlnsGpxtpx,
		Metadata:    Metadata{Name: name},
		Track:       Track{Name: name},
	}

	var (
		accepted                           int
		minLat, minLon, maxLat, maxLon     float64
	)

	for _, rec := range records {
		lat, err := telemetry.ParseDMS(rec.Latitude)
		if err != nil {
			e.logger.Warn("skipping record with unparseable latitude",
				"frame", rec.Filename, "latitude", rec.Latitude)
			continue
		}
		lon, err := telemetry.ParseDMS(rec.Longitude)
		if err != nil {
			e.logger.Warn("skipping record with unparseable longitude",
				"frame", rec.Filename, "longitude", rec.Longitude)
			continue
		}

		if accepted == 0 {
			minLat, maxLat = lat, lat
			minLon, maxLon = lon, lon
		} else {
			if lat < minLat {
				minLat = lat
			}
			if lat > maxLat {
				maxLat = lat
			}
			if lon < minLon {
				minLon = lon
			}
			if lon > maxLon {
				maxLon = lon
			}
		}
		accepted++

		latAttr := formatCoordinate(lat)
		lonAttr := formatCoordinate(lon)
		timeUTC := fmt.Sprintf("%sT%sZ", rec.Date, rec.Time)
		speed := fmt.Sprintf("%.2f", float64(rec.SpeedMph)*mphToMetersPerSecond)
		ext := Extensions{TrackPointExtension: TrackPointExtension{Speed: speed}}

		doc.Track.Segment.Points = append(doc.Track.Segment.Points, Point{
			Lat:        latAttr,
			Lon:        lonAttr,
			Time:       timeUTC,
			Extensions: ext,
		})
		doc.Waypoints = append(doc.Waypoints, Waypoint{
			Lat:        latAttr,
			Lon:        lonAttr,
			Time:       timeUTC,
			Name:       rec.Filename,
			Cmt:        rec.Filename,
			Desc:       rec.Filename,
			Extensions: ext,
		})
	}

	if accepted == 0 {
		return nil, ErrNoCoordinates
	}

	doc.Metadata.Bounds = Bounds{
		MinLat: formatCoordinate(minLat),
		MinLon: formatCoordinate(minLon),
		MaxLat: formatCoordinate(maxLat),
		MaxLon: formatCoordinate(maxLon),
	}
	e.logger.Info("track assembled", "points", accepted, "skipped", len(records)-accepted)

	return doc, nil
}

// Write serializes the document to a file with the standard XML header.
func (e *Exporter) Write(doc *Document, path string) error {
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal GPX document: %w", err)
	}
	out := append([]byte(xml.Header), body...)
	out = append(out, '\n')
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("failed to write GPX file: %w", err)
	}
	return nil
}

// formatCoordinate renders lat/lon attributes to 9 decimal places.
func formatCoordinate(v float64) string {
	return fmt.Sprintf("%.9f", v)
}
