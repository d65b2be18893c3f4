package frontier

// Candidate is one URL awaiting a scan: the form it was discovered in plus
// its normalized form used for deduplication.
type Candidate struct {
	Original   string
	Normalized string
}

// Frontier is the FIFO queue of URLs to visit plus the set of normalized
// URLs already pulled for scanning. It is owned and mutated by a single
// crawl's orchestrating goroutine only, so it carries no locking.
type Frontier struct {
	queue   []Candidate
	visited map[string]bool
}

func NewFrontier() *Frontier {
	return &Frontier{
		visited: make(map[string]bool),
	}
}

// Push appends a candidate. URLs whose normalized form has already been
// visited are dropped; the queue itself may still hold duplicates (the same
// link discovered by two pages in one batch), which PopBatch filters out.
func (f *Frontier) Push(normalized, original string) {
	if f.visited[normalized] {
		return
	}
	f.queue = append(f.queue, Candidate{Original: original, Normalized: normalized})
}

// PopBatch removes up to max not-yet-visited candidates from the head of
// the queue, marking each visited the moment it is pulled. Marking at pull
// time is what keeps a URL from being scheduled twice even when two pages
// in the same batch discovered it.
func (f *Frontier) PopBatch(max int) []Candidate {
	var batch []Candidate
	for len(f.queue) > 0 && len(batch) < max {
		c := f.queue[0]
		f.queue = f.queue[1:]
		if f.visited[c.Normalized] {
			continue
		}
		f.visited[c.Normalized] = true
		batch = append(batch, c)
	}
	return batch
}

func (f *Frontier) Len() int {
	return len(f.queue)
}

// VisitedCount returns how many distinct URLs have been pulled for
// scanning. The per-run page ceiling compares against this.
func (f *Frontier) VisitedCount() int {
	return len(f.visited)
}
