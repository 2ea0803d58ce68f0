package detector

import "io"

// progressReader reports upload progress as the request body is consumed.
// Percentages are strictly increasing in [0,100]; 100 is emitted only once
// the full body has been read. Upload completion and server processing are
// distinct phases, so the response may still be seconds away at 100.
type progressReader struct {
	r          io.Reader
	total      int64
	read       int64
	lastNotify int
	onProgress func(percent int)
}

func newProgressReader(r io.Reader, total int64, onProgress func(int)) *progressReader {
	return &progressReader{r: r, total: total, lastNotify: -1, onProgress: onProgress}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += int64(n)
		p.notify()
	}
	return n, err
}

func (p *progressReader) notify() {
	if p.onProgress == nil || p.total <= 0 {
		return
	}
	percent := int(p.read * 100 / p.total)
	if percent > 100 {
		percent = 100
	}
	if percent > p.lastNotify {
		p.lastNotify = percent
		p.onProgress(percent)
	}
}
