package dashboard

// DefaultPageSize is used when an entity does not configure one.
const DefaultPageSize = 10

// Page describes one slice of the filtered rows. Number is 1-based.
type Page struct {
	Number int   `json:"number"`
	Size   int   `json:"size"`
	Pages  int   `json:"pages"`
	Total  int   `json:"total"`
	Rows   []Row `json:"rows"`
}

// HasPrevious reports whether a previous page exists.
func (p Page) HasPrevious() bool { return p.Number > 1 }

// HasNext reports whether a next page exists.
func (p Page) HasNext() bool { return p.Number < p.Pages }

// PageCount returns the number of pages for total rows; an empty set still has one page.
func PageCount(total, size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	if total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

// Paginate slices rows into page number (clamped into range).
func Paginate(rows []Row, number, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	pages := PageCount(len(rows), size)
	number = clampPage(number, pages)
	start := (number - 1) * size
	end := start + size
	if start > len(rows) {
		start = len(rows)
	}
	if end > len(rows) {
		end = len(rows)
	}
	return Page{
		Number: number,
		Size:   size,
		Pages:  pages,
		Total:  len(rows),
		Rows:   append([]Row(nil), rows[start:end]...),
	}
}

func clampPage(number, pages int) int {
	if number < 1 {
		return 1
	}
	if number > pages {
		return pages
	}
	return number
}
