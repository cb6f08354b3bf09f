package mapview

import (
	"sync"

	"github.com/AnshRaj112/rockhunter-backend/internal/models"
)

type Marker struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Icon  Icon    `json:"icon"`
	Popup string  `json:"popup"`
}

type View struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Zoom int     `json:"zoom"`
}

// Frame is one complete drawing of the map, sent to browsers.
type Frame struct {
	Type    string   `json:"type"`
	View    View     `json:"view"`
	Markers []Marker `json:"markers"`
	Version int64    `json:"version"`
}

// FrameSurface records draw calls into a Frame. Flush publishes the pending
// frame to the sink and makes it the current one. Draw does both in one step.
type FrameSurface struct {
	// Held across the sink call so frames reach it in version order.
	publishMu sync.Mutex

	mu      sync.Mutex
	pending Frame
	current Frame
	version int64
	sink    func(Frame)
}

func NewFrameSurface(sink func(Frame)) *FrameSurface {
	view := View{Lat: DefaultLat, Lng: DefaultLng, Zoom: DefaultZoom}
	return &FrameSurface{
		pending: Frame{Type: "frame", View: view, Markers: []Marker{}},
		current: Frame{Type: "frame", View: view, Markers: []Marker{}},
		sink:    sink,
	}
}

func (f *FrameSurface) AddMarker(lat, lng float64, icon Icon, popupHTML string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending.Markers = append(f.pending.Markers, Marker{Lat: lat, Lng: lng, Icon: icon, Popup: popupHTML})
}

func (f *FrameSurface) RemoveAllMarkers() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending.Markers = []Marker{}
}

func (f *FrameSurface) CenterOn(lat, lng float64, zoom int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending.View = View{Lat: lat, Lng: lng, Zoom: zoom}
}

func (f *FrameSurface) Flush() {
	f.publishMu.Lock()
	defer f.publishMu.Unlock()

	f.mu.Lock()
	frame := f.commitLocked()
	f.mu.Unlock()
	f.publish(frame)
}

// Draw replaces every marker with one per placeable rock and publishes the
// frame. Concurrent Draws never mix their markers.
func (f *FrameSurface) Draw(rocks []models.Rock) int {
	markers := markersFor(rocks)

	f.publishMu.Lock()
	defer f.publishMu.Unlock()

	f.mu.Lock()
	f.pending.Markers = markers
	frame := f.commitLocked()
	f.mu.Unlock()
	f.publish(frame)
	return len(markers)
}

// commitLocked turns the pending frame into the current one. f.mu must be held.
func (f *FrameSurface) commitLocked() Frame {
	f.version++
	frame := f.pending
	frame.Version = f.version
	frame.Markers = append([]Marker(nil), f.pending.Markers...)
	f.current = frame
	return frame
}

func (f *FrameSurface) publish(frame Frame) {
	if f.sink != nil {
		f.sink(frame)
	}
}

// Current returns the last flushed frame.
func (f *FrameSurface) Current() Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	frame := f.current
	frame.Markers = append([]Marker{}, f.current.Markers...)
	return frame
}
