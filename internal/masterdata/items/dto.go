package items

type ItemForm struct {
	Name     string `json:"name" validate:"required,max=120"`
	Barcode  string `json:"barcode" validate:"omitempty,max=64"`
	Unit     string `json:"unit" validate:"required,max=16"`
	IsActive bool   `json:"is_active"`
}

func (f ItemForm) toItem() Item {
	return Item{Name: f.Name, Barcode: f.Barcode, Unit: f.Unit, IsActive: f.IsActive}
}
