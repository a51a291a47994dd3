package model

// UnlockProgress 每个岗位当前已解锁的最高关卡
type UnlockProgress map[Role]int

// DefaultProgress 所有岗位默认解锁第 1 关
func DefaultProgress() UnlockProgress {
	p := make(UnlockProgress, len(Roles))
	for _, r := range Roles {
		p[r.ID] = MinLevel
	}
	return p
}

// WithDefaults 补齐缺失岗位，并把低于 1 的值抬到 1
func (p UnlockProgress) WithDefaults() UnlockProgress {
	out := DefaultProgress()
	for role, level := range p {
		if level > out[role] {
			out[role] = level
		}
	}
	return out
}

func (p UnlockProgress) Level(role Role) int {
	if lvl, ok := p[role]; ok && lvl >= MinLevel {
		return lvl
	}
	return MinLevel
}

func (p UnlockProgress) CanAccess(role Role, level int) bool {
	return level <= p.Level(role)
}

func (p UnlockProgress) Clone() UnlockProgress {
	out := make(UnlockProgress, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge 按岗位取较大值，保证解锁进度单调不减
func (p UnlockProgress) Merge(other UnlockProgress) UnlockProgress {
	out := p.Clone()
	for role, level := range other {
		if level > out[role] {
			out[role] = level
		}
	}
	return out
}
