package codec

import (
	"github.com/ava-labs/avalanchego/codec"
	"github.com/ava-labs/avalanchego/codec/linearcodec"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

// AppCodecVersion is the codec version registered for application metadata.
const AppCodecVersion = 0

// AppManager marshals/unmarshals AppMeta (and other reflection-friendly,
// rarely-hot-path blobs) the way the teacher's codec.go registers Block:
// a linearcodec.Manager keeps struct layout stable across upgrades without
// hand-writing a field-by-field encoder for every app-defined schema.
var AppManager codec.Manager

// RegisterAppType registers t with the app codec. Call during package init
// for every concrete type that travels through APP_REGISTER metadata.
func RegisterAppType(t interface{}) error {
	return appLinearCodec.RegisterType(t)
}

var appLinearCodec linearcodec.Codec

func init() {
	appLinearCodec = linearcodec.NewDefault()
	AppManager = codec.NewDefaultManager()

	errs := wrappers.Errs{}
	errs.Add(AppManager.RegisterCodec(AppCodecVersion, appLinearCodec))
	if errs.Errored() {
		panic(errs.Err)
	}
}
