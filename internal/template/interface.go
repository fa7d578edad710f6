package template

type CatalogHandler interface {
	Get(id string) (Template, bool)
	List() []Template
	IsImageAllowed(ref string) bool
}
