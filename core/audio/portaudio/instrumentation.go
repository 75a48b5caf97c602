package portaudio

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/ParkKunsu/MaLangEE-sub000/core/audio/portaudio"

var logger = otelslog.NewLogger(scopeName)
