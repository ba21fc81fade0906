package round

type StartRoundJob struct {
	Manager *Manager
	RoundID int64
}

func (j *StartRoundJob) Execute() {
	// errors are repaired by the watchdog sweep, not propagated
	_ = j.Manager.StartRound(j.RoundID)
}

type CrashRoundJob struct {
	Manager *Manager
	RoundID int64
}

func (j *CrashRoundJob) Execute() {
	_ = j.Manager.CrashRound(j.RoundID)
}

type CreateRoundJob struct {
	Manager *Manager
}

func (j *CreateRoundJob) Execute() {
	_ = j.Manager.CreateRound()
}

type CountdownJob struct {
	Manager     *Manager
	RoundUUID   string
	SecondsLeft int
}

func (j *CountdownJob) Execute() {
	j.Manager.publishEvent("round:countdown", map[string]interface{}{
		"round_uuid":   j.RoundUUID,
		"seconds_left": j.SecondsLeft,
	})
}
