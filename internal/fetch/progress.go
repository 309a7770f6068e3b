package fetch

import "log"

// Progress tracks the counters of one fetch session: API requests
// issued, items listed, and items actually processed.  It is owned by
// a single Session and is not safe for concurrent use.
type Progress struct {
	// Requests is the number of API list requests issued.
	Requests int

	// Total is the number of items seen across all list pages.
	Total int

	// Processed is the number of items fully processed so far.
	Processed int

	// LastBatch is the number of items received by the most recent
	// list request.
	LastBatch int

	itemType string
	limit    int
}

func newProgress(itemType string, limit int) *Progress {
	return &Progress{itemType: itemType, limit: limit, LastBatch: -1}
}

// IncrRequests counts one more API request.
func (p *Progress) IncrRequests() {
	p.Requests++
}

// RegisterNewItems counts a freshly listed batch of items and, when
// announce is set, logs the batch size.
func (p *Progress) RegisterNewItems(count int, announce bool) {
	p.Total += count
	p.LastBatch = count
	if announce {
		log.Printf("[request #%d] received %d more %ss", p.Requests, p.LastBatch, p.itemType)
	}
}

// IncrProcessed counts one more processed item.
func (p *Progress) IncrProcessed() {
	p.Processed++
}

// LimitReached reports whether a limit was configured and the
// processed count strictly exceeds it.  The caller increments before
// checking, so the item that trips the limit has been counted but not
// processed.
func (p *Progress) LimitReached() bool {
	return p.limit > 0 && p.Processed > p.limit
}

// ReportStatus logs how far processing has come.
func (p *Progress) ReportStatus() {
	log.Printf("processing %ss: %d / %d", p.itemType, p.Processed, p.Total)
}
