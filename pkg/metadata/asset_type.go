package metadata

import "fmt"

// AssetType names the kind of physical asset a QR code can be bound to.
type AssetType string

const (
	AssetTypeEquipment  AssetType = "equipment"
	AssetTypePart       AssetType = "part"
	AssetTypeConsumable AssetType = "consumable"
)

func NewAssetType(value string) (AssetType, error) {
	assetType := AssetType(value)
	if !assetType.IsValid() {
		return "", fmt.Errorf(
			"value not valid, only valid values are: %s, %s, %s",
			AssetTypeEquipment, AssetTypePart, AssetTypeConsumable,
		)
	}
	return assetType, nil
}

func (a AssetType) IsValid() bool {
	switch a {
	case AssetTypeEquipment, AssetTypePart, AssetTypeConsumable:
		return true
	default:
		return false
	}
}

func (a AssetType) String() string {
	return string(a)
}
