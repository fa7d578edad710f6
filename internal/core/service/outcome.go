package service

import (
	"dockmate/internal/logger"
	"dockmate/internal/progress"
	"dockmate/internal/store/registry"

	"github.com/sirupsen/logrus"
)

type Step string

const (
	StepValidating            Step = "Validating"
	StepPortResolving         Step = "PortResolving"
	StepDirectoryProvisioning Step = "DirectoryProvisioning"
	StepImageEnsuring         Step = "ImageEnsuring"
	StepContainerStopping     Step = "ContainerStopping"
	StepContainerRemoving     Step = "ContainerRemoving"
	StepContainerCreating     Step = "ContainerCreating"
	StepContainerStarting     Step = "ContainerStarting"
	StepRegistered            Step = "Registered"
	StepProjectExtracting     Step = "ProjectExtracting"
	StepCommandDeriving       Step = "CommandDeriving"
	StepImageBuilding         Step = "ImageBuilding"
	StepCompanion             Step = "CompanionProvisioning"
	StepVolumeRemoving        Step = "VolumeRemoving"
	StepUnregistering         Step = "Unregistering"
)

type OutcomeKind string

const (
	OutcomeOk      OutcomeKind = "Ok"
	OutcomeWarning OutcomeKind = "Warning"
	OutcomeFatal   OutcomeKind = "Fatal"
)

// Outcome records how one step of an operation ended. Warnings are failures
// the operation tolerated.
type Outcome struct {
	Step   Step        `json:"step"`
	Kind   OutcomeKind `json:"kind"`
	Reason string      `json:"reason,omitempty"`
}

// operation threads the progress transcript and step outcomes through one
// lifecycle call.
type operation struct {
	name     string
	log      *progress.Log
	outcomes []Outcome
}

func newOperation(sessionId, name string, publisher progress.Publisher) *operation {
	return &operation{
		name: name,
		log:  progress.NewLog(sessionId, publisher),
	}
}

func (o *operation) entry(step Step) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"service":   o.name,
		"step":      string(step),
		"sessionId": o.log.SessionId(),
	})
}

// say adds a progress line without closing the step.
func (o *operation) say(step Step, message string) {
	o.log.Add(message)
	o.entry(step).Debug(message)
}

func (o *operation) ok(step Step, message string) {
	o.log.Add(message)
	o.outcomes = append(o.outcomes, Outcome{Step: step, Kind: OutcomeOk})
	o.entry(step).Info(message)
}

func (o *operation) warn(step Step, reason string) {
	o.log.Warn(reason)
	o.outcomes = append(o.outcomes, Outcome{Step: step, Kind: OutcomeWarning, Reason: reason})
	o.entry(step).Warn(reason)
}

// fail records the terminal outcome and returns err unchanged.
func (o *operation) fail(step Step, err error) error {
	o.log.Add("Error: " + err.Error())
	o.outcomes = append(o.outcomes, Outcome{Step: step, Kind: OutcomeFatal, Reason: err.Error()})
	o.entry(step).Error(err.Error())
	return err
}

// absorb folds the outcomes of a nested operation into o. The nested
// operation's fatal step is tolerated by o, so it is kept as a warning.
func (o *operation) absorb(child *operation) {
	for _, c := range child.outcomes {
		if c.Kind == OutcomeFatal {
			c.Kind = OutcomeWarning
		}
		if c.Reason != "" {
			c.Reason = child.name + ": " + c.Reason
		}
		o.outcomes = append(o.outcomes, c)
	}
}

func (o *operation) result(svc *registry.Service) Result {
	res := Result{
		Progress:  o.log.Lines(),
		SessionId: o.log.SessionId(),
		Outcomes:  append([]Outcome{}, o.outcomes...),
	}
	if svc != nil {
		masked := svc.Masked()
		res.Service = &masked
	}
	return res
}
