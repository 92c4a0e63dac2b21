package domain

// Stop is one location visit in a restock run. Values are immutable once
// handed to the sequencer; WithPlace returns an updated copy.
type Stop struct {
	ID       string           `json:"id"`
	Title    string           `json:"title"`
	Subtitle string           `json:"subtitle,omitempty"`
	Address  string           `json:"address"`
	Place    *Place           `json:"place,omitempty"`
	Schedule ResolvedSchedule `json:"schedule"`
}

func (s Stop) WithPlace(p Place) Stop {
	s.Place = &p
	return s
}

// Label is what maps and legs show for the stop.
func (s Stop) Label() string {
	if s.Title != "" {
		return s.Title
	}
	if s.Place != nil && s.Place.Label != "" {
		return s.Place.Label
	}
	return s.Address
}

// StopRecord is the raw location record supplied for a run; schedule fields
// are nil when not configured.
type StopRecord struct {
	ID             string
	Title          string
	Subtitle       string
	Address        string
	OpeningMinutes *int
	ClosingMinutes *int
	DwellMinutes   *int
}

// Stop resolves the record's schedule; the place is filled in later.
func (r StopRecord) Stop() Stop {
	return Stop{
		ID:       r.ID,
		Title:    r.Title,
		Subtitle: r.Subtitle,
		Address:  r.Address,
		Schedule: ResolveSchedule(r.OpeningMinutes, r.ClosingMinutes, r.DwellMinutes),
	}
}
