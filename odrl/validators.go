// Copyright 2024 go-dataspace
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package odrl

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	odrlNamespace = "http://www.w3.org/ns/odrl/2/"
	ccNamespace   = "http://creativecommons.org/ns#"
)

type vocabulary map[string]struct{}

func newVocabulary(prefix string, terms ...string) vocabulary {
	v := make(vocabulary, len(terms))
	for _, t := range terms {
		v[prefix+t] = struct{}{}
	}
	return v
}

func (v vocabulary) with(other vocabulary) vocabulary {
	for k := range other {
		v[k] = struct{}{}
	}
	return v
}

var (
	actions = newVocabulary("odrl:",
		"delete", "execute", "anonymize", "extract", "read", "index", "compensate", "sell",
		"derive", "ensureExclusivity", "annotate", "translate", "include", "textToSpeech",
		"inform", "grantUse", "archive", "modify", "aggregate", "attribute", "nextPolicy",
		"digitize", "install", "concurrentUse", "distribute", "synchronize", "move",
		"obtainConsent", "print", "give", "uninstall", "reviewPolicy", "watermark", "play",
		"reproduce", "transform", "display", "stream", "acceptTracking", "present", "use",
	).with(newVocabulary("cc:",
		"SourceCode", "Reproduction", "DerivativeWorks", "Distribution", "Attribution",
		"Notice", "Sharing", "ShareAlike", "CommericalUse",
	))

	leftOperands = newVocabulary("odrl:",
		"absolutePosition", "absoluteSize", "absoluteSpatialPosition",
		"absoluteTemporalPosition", "count", "dateTime", "delayPeriod", "deliveryChannel",
		"device", "elapsedTime", "event", "fileFormat", "industry", "language", "media",
		"meteredTime", "payAmount", "percentage", "product", "purpose", "recipient",
		"relativePosition", "relativeSize", "relativeSpatialPosition",
		"relativeTemporalPosition", "resolution", "spatial", "spatialCoordinates", "system",
		"systemDevice", "timeInterval", "unitOfCount", "version", "virtualLocation",
	)

	operators = newVocabulary("odrl:",
		"eq", "gt", "gteq", "hasPart", "isA", "isAllOf", "isAnyOf", "isNoneOf", "isPartOf",
		"lt", "lteq", "neq",
	)
)

// Normalise returns the compact form of an ODRL or Creative Commons term. Peers may send
// full IRIs ("http://www.w3.org/ns/odrl/2/use") or unprefixed ODRL terms ("use").
func Normalise(term string) string {
	switch {
	case strings.HasPrefix(term, odrlNamespace):
		return "odrl:" + strings.TrimPrefix(term, odrlNamespace)
	case strings.HasPrefix(term, ccNamespace):
		return "cc:" + strings.TrimPrefix(term, ccNamespace)
	case term != "" && !strings.Contains(term, ":"):
		return "odrl:" + term
	default:
		return term
	}
}

func (v vocabulary) validate(fl validator.FieldLevel) bool {
	_, ok := v[Normalise(fl.Field().String())]
	return ok
}

// RegisterValidators registers the odrl_action, odrl_leftoperand and odrl_operator tags.
func RegisterValidators(v *validator.Validate) error {
	for tag, vocab := range map[string]vocabulary{
		"odrl_action":      actions,
		"odrl_leftoperand": leftOperands,
		"odrl_operator":    operators,
	} {
		if err := v.RegisterValidation(tag, vocab.validate); err != nil {
			return err
		}
	}
	return nil
}
