// Package content holds the carousel and news documents and the operations that
// mutate them.
package content

import (
	"errors"

	"vitrine/api/internal/docstore"
)

const (
	CarouselFile = "carousel-data.json"
	NewsFile     = "news-data.json"

	// DefaultAlt is the alt text given to images added through the admin routes.
	DefaultAlt = "New Image"
)

var (
	ErrIndexOutOfRange = errors.New("image index out of range")
	ErrNoNewsItems     = errors.New("no news items to remove")
)

type ImageEntry struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

type CarouselDocument struct {
	Images []ImageEntry `json:"images"`
}

type NewsDocument struct {
	Items []string `json:"items"`
}

func EmptyCarousel() CarouselDocument {
	return CarouselDocument{Images: []ImageEntry{}}
}

func EmptyNews() NewsDocument {
	return NewsDocument{Items: []string{}}
}

func (d *CarouselDocument) normalize() {
	if d.Images == nil {
		d.Images = []ImageEntry{}
	}
}

func (d *NewsDocument) normalize() {
	if d.Items == nil {
		d.Items = []string{}
	}
}

func (d *CarouselDocument) Append(entry ImageEntry) {
	d.normalize()
	d.Images = append(d.Images, entry)
}

// RemoveAt drops the entry at index and shifts the rest down by one.
func (d *CarouselDocument) RemoveAt(index int) (ImageEntry, error) {
	d.normalize()
	if index < 0 || index >= len(d.Images) {
		return ImageEntry{}, ErrIndexOutOfRange
	}
	removed := d.Images[index]
	images := make([]ImageEntry, 0, len(d.Images)-1)
	images = append(images, d.Images[:index]...)
	images = append(images, d.Images[index+1:]...)
	d.Images = images
	return removed, nil
}

func (d *NewsDocument) Append(text string) {
	d.normalize()
	d.Items = append(d.Items, text)
}

func (d *NewsDocument) PopLast() (string, error) {
	d.normalize()
	if len(d.Items) == 0 {
		return "", ErrNoNewsItems
	}
	last := d.Items[len(d.Items)-1]
	d.Items = d.Items[:len(d.Items)-1]
	return last, nil
}

// Service runs each operation as a locked load-transform-save on the document store.
type Service struct {
	docs *docstore.Store
}

func NewService(docs *docstore.Store) *Service {
	return &Service{docs: docs}
}

func (s *Service) Carousel() CarouselDocument {
	doc := docstore.Load(s.docs, CarouselFile, EmptyCarousel)
	doc.normalize()
	return doc
}

func (s *Service) News() NewsDocument {
	doc := docstore.Load(s.docs, NewsFile, EmptyNews)
	doc.normalize()
	return doc
}

func (s *Service) AppendImage(src, alt string) (CarouselDocument, error) {
	return docstore.Update(s.docs, CarouselFile, EmptyCarousel, func(doc *CarouselDocument) error {
		doc.Append(ImageEntry{Src: src, Alt: alt})
		return nil
	})
}

func (s *Service) RemoveImageAt(index int) (CarouselDocument, error) {
	return docstore.Update(s.docs, CarouselFile, EmptyCarousel, func(doc *CarouselDocument) error {
		_, err := doc.RemoveAt(index)
		return err
	})
}

func (s *Service) AppendNews(text string) (NewsDocument, error) {
	return docstore.Update(s.docs, NewsFile, EmptyNews, func(doc *NewsDocument) error {
		doc.Append(text)
		return nil
	})
}

func (s *Service) PopLastNews() (NewsDocument, error) {
	return docstore.Update(s.docs, NewsFile, EmptyNews, func(doc *NewsDocument) error {
		_, err := doc.PopLast()
		return err
	})
}
