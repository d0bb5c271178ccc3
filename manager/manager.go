package manager

import (
	"github.com/sirupsen/logrus"

	"github.com/billybrichards/climate-parser/logging"
)

var log *logrus.Logger

func init() {
	log = logging.GetLogger()
}
