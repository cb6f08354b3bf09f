package mapview

import (
	"fmt"
	"html"
	"strings"

	"github.com/AnshRaj112/rockhunter-backend/internal/models"
)

// Default view: Auckland Domain.
const (
	DefaultLat  = -36.8604
	DefaultLng  = 174.7772
	DefaultZoom = 15
)

type Icon string

const (
	IconHidden Icon = "rock-hidden"
	IconFound  Icon = "rock-found"
)

// Surface is a map that shows rock markers. The sync core only draws on it.
type Surface interface {
	AddMarker(lat, lng float64, icon Icon, popupHTML string)
	RemoveAllMarkers()
	CenterOn(lat, lng float64, zoom int)
}

// Flusher is implemented by surfaces that buffer draw calls.
type Flusher interface {
	Flush()
}

// Drawer is implemented by surfaces that can replace every marker in one
// atomic step. Redraw prefers it over separate clear and add calls.
type Drawer interface {
	Draw(rocks []models.Rock) int
}

func IconFor(rock models.Rock) Icon {
	if rock.IsFound() {
		return IconFound
	}
	return IconHidden
}

// Render clears s and adds one marker per placeable rock. It returns the
// number of markers added; rocks with invalid coordinates are skipped.
func Render(s Surface, rocks []models.Rock) int {
	s.RemoveAllMarkers()

	markers := markersFor(rocks)
	for _, m := range markers {
		s.AddMarker(m.Lat, m.Lng, m.Icon, m.Popup)
	}
	return len(markers)
}

func markersFor(rocks []models.Rock) []Marker {
	markers := make([]Marker, 0, len(rocks))
	for _, rock := range rocks {
		if !models.ValidCoordinates(rock.Lat, rock.Lng) {
			continue
		}
		markers = append(markers, Marker{Lat: rock.Lat, Lng: rock.Lng, Icon: IconFor(rock), Popup: Popup(rock)})
	}
	return markers
}

// Redraw renders rocks and flushes s when it buffers.
func Redraw(s Surface, rocks []models.Rock) int {
	if s == nil {
		return 0
	}
	if d, ok := s.(Drawer); ok {
		return d.Draw(rocks)
	}
	n := Render(s, rocks)
	if f, ok := s.(Flusher); ok {
		f.Flush()
	}
	return n
}

// Popup builds the marker popup. Every user-supplied value is escaped.
func Popup(rock models.Rock) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<div class="rock-popup" data-rock-id="%s">`, html.EscapeString(rock.ID))
	fmt.Fprintf(&b, "<h3>%s</h3>", html.EscapeString(rock.Name))
	if rock.Description != "" {
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(rock.Description))
	}
	if len(rock.Photos) > 0 {
		fmt.Fprintf(&b, `<img src="%s" alt="%s" class="rock-photo">`, html.EscapeString(rock.Photos[0]), html.EscapeString(rock.Name))
	}

	if rock.IsFound() {
		fmt.Fprintf(&b, `<p class="rock-status found">Found by %s</p>`, html.EscapeString(rock.FoundBy))
		if rock.FoundNotes != "" {
			fmt.Fprintf(&b, `<p class="rock-notes">%s</p>`, html.EscapeString(rock.FoundNotes))
		}
	} else {
		b.WriteString(`<p class="rock-status hidden">Still hidden</p>`)
	}

	if rock.PostedByUsername != "" && !rock.IsAnonymous {
		fmt.Fprintf(&b, `<p class="rock-poster">Posted by %s</p>`, html.EscapeString(rock.PostedByUsername))
	}
	b.WriteString("</div>")
	return b.String()
}
